package services

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localStack returns a storage service against LocalStack, skipping when it
// is not configured
func localStack(t *testing.T) *StorageService {
	t.Helper()
	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if testing.Short() || endpoint == "" {
		t.Skip("Skipping integration test: LOCALSTACK_ENDPOINT not set")
	}

	service, err := NewStorageService(context.Background(), "finlens-uploads", "us-east-1", endpoint)
	require.NoError(t, err, "Failed to create storage service")

	// Ignore error if bucket already exists
	_, _ = service.s3Client.CreateBucket(context.Background(), &s3.CreateBucketInput{
		Bucket: aws.String(service.bucket),
	})
	return service
}

func TestNewStorageService(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		endpoint string
		wantErr  bool
	}{
		{"LocalStack endpoint", "test-bucket", "us-east-1", "http://localhost:4566", false},
		{"AWS", "test-bucket", "ap-south-1", "", false},
		{"empty bucket", "", "us-east-1", "http://localhost:4566", true},
		{"empty region", "test-bucket", "", "http://localhost:4566", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewStorageService(context.Background(), tt.bucket, tt.region, tt.endpoint)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, service)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, service.s3Client)
			assert.Equal(t, tt.bucket, service.bucket)
			assert.Equal(t, tt.region, service.region)
		})
	}
}

func TestGenerateUploadKey(t *testing.T) {
	service := &StorageService{}
	companyID := uuid.New()

	tests := []struct {
		name       string
		companyID  uuid.UUID
		filename   string
		wantSuffix string
		wantErr    bool
	}{
		{"valid input", companyID, "pnl.xlsx", "-pnl.xlsx", false},
		{"filename with spaces", companyID, "Estado de Resultados 2024.csv", "-Estado-de-Resultados-2024.csv", false},
		{"special characters", companyID, "cash@flow.XLSX", "-cash-flow.xlsx", false},
		{"directories stripped", companyID, "../../other/pnl.csv", "-pnl.csv", false},
		{"empty company", uuid.Nil, "pnl.csv", "", true},
		{"empty filename", companyID, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := service.GenerateUploadKey(tt.companyID, tt.filename)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, key)
				return
			}
			require.NoError(t, err)
			parts := strings.Split(key, "/")
			require.Len(t, parts, 3, "key should have 3 parts separated by /")
			assert.Equal(t, "uploads", parts[0])
			assert.Equal(t, tt.companyID.String(), parts[1])
			assert.True(t, strings.HasSuffix(key, tt.wantSuffix), key)
			assert.True(t, OwnsKey(tt.companyID, key))
		})
	}
}

func TestOwnsKey(t *testing.T) {
	companyID := uuid.New()
	other := uuid.New()

	assert.True(t, OwnsKey(companyID, "uploads/"+companyID.String()+"/1-abc-pnl.csv"))
	assert.False(t, OwnsKey(companyID, "uploads/"+other.String()+"/1-abc-pnl.csv"))
	assert.False(t, OwnsKey(companyID, "uploads/"+companyID.String()+"/"))
	assert.False(t, OwnsKey(companyID, "uploads/"+companyID.String()+"/../"+other.String()+"/x.csv"))
	assert.False(t, OwnsKey(companyID, companyID.String()+"/pnl.csv"))
}

func TestGeneratePresignedURL_Validation(t *testing.T) {
	service := &StorageService{bucket: "test-bucket", region: "us-east-1"}

	_, err := service.GeneratePresignedURL(context.Background(), "", "text/csv", time.Minute)
	assert.ErrorContains(t, err, "key cannot be empty")

	_, err = service.GeneratePresignedURL(context.Background(), "uploads/x/pnl.csv", "text/csv", 0)
	assert.ErrorContains(t, err, "expiry")

	// s3 client is nil
	_, err = service.GeneratePresignedURL(context.Background(), "uploads/x/pnl.csv", "text/csv", time.Minute)
	assert.ErrorContains(t, err, "not initialized")
}

func TestGeneratePresignedURL_Offline(t *testing.T) {
	service, err := NewStorageService(context.Background(), "finlens-uploads", "us-east-1", "http://localhost:4566")
	require.NoError(t, err)

	url, err := service.GeneratePresignedURL(context.Background(), "uploads/company/pnl.xlsx", xlsxMimeType, 15*time.Minute)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:4566/finlens-uploads/uploads/company/pnl.xlsx"))
	assert.Contains(t, url, "X-Amz-Algorithm")
	assert.Contains(t, url, "X-Amz-Expires=900")
}

func TestStorageService_Integration(t *testing.T) {
	service := localStack(t)
	ctx := context.Background()
	companyID := uuid.New()

	uploadKey, err := service.GenerateUploadKey(companyID, "integration.csv")
	require.NoError(t, err)

	presignedURL, err := service.GeneratePresignedURL(ctx, uploadKey, "text/csv", 15*time.Minute)
	require.NoError(t, err)
	assert.NotEmpty(t, presignedURL)

	content := "Account,January 2024\nSales,100\n"
	_, err = service.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(service.bucket),
		Key:         aws.String(uploadKey),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/csv"),
	})
	require.NoError(t, err, "Failed to upload file")

	body, contentType, err := service.DownloadFile(ctx, uploadKey)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
	assert.Equal(t, "text/csv", contentType)

	require.NoError(t, service.DeleteFile(ctx, uploadKey))

	_, _, err = service.DownloadFile(ctx, uploadKey)
	assert.Error(t, err, "File should not exist after deletion")
}

func TestDownloadFile_Validation(t *testing.T) {
	service := &StorageService{}

	_, _, err := service.DownloadFile(context.Background(), "")
	assert.ErrorContains(t, err, "key cannot be empty")

	err = service.DeleteFile(context.Background(), "")
	assert.ErrorContains(t, err, "key cannot be empty")

	err = service.DeleteFile(context.Background(), "uploads/x/pnl.csv")
	assert.ErrorContains(t, err, "not initialized")
}
