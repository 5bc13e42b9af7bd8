package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kycportal/identity-verification-service/internal/verification"
)

var (
	// ErrNotConfigured is returned by every operation when Init has not succeeded.
	ErrNotConfigured = errors.New("object storage not configured")
	// ErrReferenceNotFound means no reference document exists for a digest.
	ErrReferenceNotFound = errors.New("reference document not found")
)

var Client *minio.Client
var BucketName string

// Init connects to MinIO from MINIO_* environment variables and makes sure
// the bucket exists. Without credentials it returns ErrNotConfigured.
func Init() error {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "minio:9000"
	}
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	if accessKey == "" || secretKey == "" {
		return fmt.Errorf("%w: MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required", ErrNotConfigured)
	}

	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "kyc-documents"
	}
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	Client = client
	BucketName = bucket
	return nil
}

// Available reports whether storage calls can succeed.
func Available() bool { return Client != nil }

// UploadDocumentImage stores an uploaded document photo under
// documents/YYYY/MM/{verificationID}/{filename} and returns bucket/object.
func UploadDocumentImage(ctx context.Context, verificationID, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	if Client == nil {
		return "", ErrNotConfigured
	}
	objectName := documentKey(time.Now(), verificationID, filename)

	_, err := Client.PutObject(ctx, BucketName, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload document image: %w", err)
	}
	return BucketName + "/" + objectName, nil
}

// PutReference stores doc content-addressed by its digest. Storing the same
// document twice yields the same digest and overwrites identical bytes.
func PutReference(ctx context.Context, doc verification.ExtractedDocument) (string, error) {
	if Client == nil {
		return "", ErrNotConfigured
	}
	if err := doc.Validate(0); err != nil {
		return "", err
	}
	digest, err := verification.DocumentDigest(doc)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode reference: %w", err)
	}

	_, err = Client.PutObject(ctx, BucketName, referenceKey(digest), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"document-type": string(doc.DocumentType.Canonical())},
	})
	if err != nil {
		return "", fmt.Errorf("failed to store reference: %w", err)
	}
	return digest, nil
}

// GetReference loads a reference document by digest and checks that its
// content still hashes to that digest.
func GetReference(ctx context.Context, digest string) (*verification.ExtractedDocument, error) {
	if Client == nil {
		return nil, ErrNotConfigured
	}
	digest = strings.ToLower(strings.TrimSpace(digest))
	if !verification.IsDigest(digest) {
		return nil, fmt.Errorf("%w: malformed digest %q", ErrReferenceNotFound, digest)
	}

	obj, err := Client.GetObject(ctx, BucketName, referenceKey(digest), minio.GetObjectOptions{})
	if err != nil {
		return nil, mapNotFound(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, mapNotFound(err)
	}

	var doc verification.ExtractedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode reference %s: %w", digest, err)
	}
	got, err := verification.DocumentDigest(doc)
	if err != nil {
		return nil, err
	}
	if got != digest {
		return nil, fmt.Errorf("reference %s content hashes to %s", digest, got)
	}
	return &doc, nil
}

// ArchivedVerdict is the JSON object written to the verdict archive.
type ArchivedVerdict struct {
	ID          string                `json:"id"`
	Fingerprint string                `json:"fingerprint"`
	ArchivedAt  time.Time             `json:"archivedAt"`
	Verdict     *verification.Verdict `json:"verdict"`
}

// ArchiveVerdict writes the verdict and its fingerprint so a downstream
// ledger step can anchor the fingerprint. Returns bucket/object.
func ArchiveVerdict(ctx context.Context, id, fingerprint string, verdict *verification.Verdict) (string, error) {
	if Client == nil {
		return "", ErrNotConfigured
	}
	now := time.Now().UTC()
	data, err := json.Marshal(ArchivedVerdict{ID: id, Fingerprint: fingerprint, ArchivedAt: now, Verdict: verdict})
	if err != nil {
		return "", fmt.Errorf("failed to encode verdict: %w", err)
	}

	objectName := verdictKey(now, id)
	_, err = Client.PutObject(ctx, BucketName, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{"fingerprint": fingerprint},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive verdict: %w", err)
	}
	return BucketName + "/" + objectName, nil
}

// GetPresignedURL generates a time-limited URL for viewing a stored object.
func GetPresignedURL(ctx context.Context, objectPath string) (string, error) {
	if Client == nil {
		return "", ErrNotConfigured
	}
	url, err := Client.PresignedGetObject(ctx, BucketName, objectName(objectPath), 1*time.Hour, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url.String(), nil
}

// DeleteObject removes a stored object.
func DeleteObject(ctx context.Context, objectPath string) error {
	if Client == nil {
		return ErrNotConfigured
	}
	return Client.RemoveObject(ctx, BucketName, objectName(objectPath), minio.RemoveObjectOptions{})
}

// GetFileExtension maps an upload content type to a file extension.
func GetFileExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/heic":
		return ".heic"
	case "application/pdf":
		return ".pdf"
	default:
		return ".bin"
	}
}

func documentKey(t time.Time, verificationID, filename string) string {
	return fmt.Sprintf("documents/%d/%02d/%s/%s", t.Year(), t.Month(), verificationID, filename)
}

func referenceKey(digest string) string {
	return "references/" + digest[:2] + "/" + digest + ".json"
}

func verdictKey(t time.Time, id string) string {
	return fmt.Sprintf("verdicts/%d/%02d/%s.json", t.Year(), t.Month(), id)
}

// objectName strips a leading "bucket/" from paths returned by this package.
func objectName(objectPath string) string {
	return strings.TrimPrefix(objectPath, BucketName+"/")
}

func mapNotFound(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrReferenceNotFound
	}
	return fmt.Errorf("failed to read reference: %w", err)
}
