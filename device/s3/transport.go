package s3

import (
	"context"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mwantia/adbfs/data"
	"github.com/mwantia/adbfs/device"
)

// Transport emulates devices with object storage: every bucket carrying
// BucketPrefix is one device, named by the rest of the bucket name.
// Directories are zero-byte "key/" marker objects.
type Transport struct {
	client *minio.Client
	config *Config
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// Region skips the bucket location lookup when set.
	Region string

	// BucketPrefix limits which buckets are exposed as devices (default: "adbfs-")
	BucketPrefix string
}

var _ device.Transport = (*Transport)(nil)

func NewTransport(config *Config) (*Transport, error) {
	if config.BucketPrefix == "" {
		config.BucketPrefix = "adbfs-"
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, err
	}

	return &Transport{
		client: client,
		config: config,
	}, nil
}

// Name returns the identifier name defined for this transport
func (*Transport) Name() string {
	return "s3"
}

// Open verifies that the object storage is reachable.
func (t *Transport) Open(ctx context.Context) error {
	_, err := t.client.ListBuckets(ctx)
	return err
}

func (t *Transport) Close(ctx context.Context) error {
	return nil
}

func (t *Transport) Capabilities() *device.Capabilities {
	return device.NewCapabilities(
		device.CapabilityEmulated,
		device.CapabilityPersistent,
	)
}

// Attach creates the bucket backing a device.
func (t *Transport) Attach(ctx context.Context, id string) error {
	bucket := t.bucket(id)

	exists, err := t.client.BucketExists(ctx, bucket)
	if err != nil || exists {
		return err
	}

	return t.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

// Detach removes the bucket backing a device together with all of its objects.
func (t *Transport) Detach(ctx context.Context, id string) error {
	bucket := t.bucket(id)

	exists, err := t.client.BucketExists(ctx, bucket)
	if err != nil || !exists {
		return err
	}

	for object := range t.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return object.Err
		}
		if err := t.client.RemoveObject(ctx, bucket, object.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}

	return t.client.RemoveBucket(ctx, bucket)
}

func (t *Transport) ListDevices(ctx context.Context) ([]data.DeviceInfo, error) {
	buckets, err := t.client.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}

	devices := make([]data.DeviceInfo, 0, len(buckets))
	for _, bucket := range buckets {
		if id, ok := t.deviceID(bucket.Name); ok {
			devices = append(devices, data.DeviceInfo{
				ID:    id,
				State: "device",
			})
		}
	}

	return devices, nil
}

func (t *Transport) Device(id string) device.Client {
	return &Device{
		client: t.client,
		bucket: t.bucket(id),
	}
}

func (t *Transport) bucket(id string) string {
	return t.config.BucketPrefix + id
}

func (t *Transport) deviceID(bucket string) (string, bool) {
	id, ok := strings.CutPrefix(bucket, t.config.BucketPrefix)
	return id, ok && id != ""
}
