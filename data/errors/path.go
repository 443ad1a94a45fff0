package errors

import "github.com/mwantia/adbfs/data"

func InvalidPath(err error, path string) error {
	return newError(data.ErrInvalidPath, err, "resolve", path)
}

func ReservedName(op, path string) error {
	return newError(data.ErrReservedName, nil, op, path)
}

func NotFound(err error, op, path string) error {
	return newError(data.ErrNotExist, err, op, path)
}

func NameConflict(op, path string) error {
	return newError(data.ErrExist, nil, op, path)
}

func CrossDevice(op, from, to string) error {
	return newError(data.ErrCrossDevice, nil, op, from+" -> "+to)
}

func IsDirectory(op, path string) error {
	return newError(data.ErrIsDirectory, nil, op, path)
}

func ReadOnly(op, path string) error {
	return newError(data.ErrReadOnly, nil, op, path)
}
