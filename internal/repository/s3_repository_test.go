package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubS3 struct {
	putInput  *s3.PutObjectInput
	putErr    error
	headInput *s3.HeadObjectInput
	headOut   *s3.HeadObjectOutput
	headErr   error
}

func (s *stubS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.putInput = params
	if s.putErr != nil {
		return nil, s.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (s *stubS3) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	s.headInput = params
	if s.headErr != nil {
		return nil, s.headErr
	}
	return s.headOut, nil
}

func newS3TestRepo(stub *stubS3) *s3Repository {
	return &s3Repository{client: stub, bucket: "receipts", log: zap.NewNop()}
}

func TestUploadFileSendsObjectParameters(t *testing.T) {
	stub := &stubS3{}
	repo := newS3TestRepo(stub)

	body := bytes.NewReader([]byte("jpeg bytes"))
	err := repo.UploadFile(context.Background(), "scans/receipt.jpg", body, 10, "image/jpeg")
	require.NoError(t, err)

	require.NotNil(t, stub.putInput)
	assert.Equal(t, "receipts", aws.ToString(stub.putInput.Bucket))
	assert.Equal(t, "scans/receipt.jpg", aws.ToString(stub.putInput.Key))
	assert.Equal(t, "image/jpeg", aws.ToString(stub.putInput.ContentType))
	assert.Equal(t, int64(10), aws.ToInt64(stub.putInput.ContentLength))

	sent, err := io.ReadAll(stub.putInput.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(sent))
}

func TestUploadFileReturnsServiceError(t *testing.T) {
	stub := &stubS3{putErr: &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "bucket missing"}}
	repo := newS3TestRepo(stub)

	err := repo.UploadFile(context.Background(), "receipt.jpg", bytes.NewReader(nil), 0, "image/jpeg")
	require.Error(t, err)
	assert.Equal(t, "NoSuchBucket", apiErrorCode(err))
}

func TestStatFileMapsMetadata(t *testing.T) {
	modified := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	stub := &stubS3{headOut: &s3.HeadObjectOutput{
		ContentType:   aws.String("image/jpeg"),
		ContentLength: aws.Int64(2048),
		LastModified:  aws.Time(modified),
		ETag:          aws.String(`"abc123"`),
	}}
	repo := newS3TestRepo(stub)

	meta, err := repo.StatFile(context.Background(), "receipt.jpg")
	require.NoError(t, err)

	assert.Equal(t, "receipt.jpg", aws.ToString(stub.headInput.Key))
	assert.Equal(t, "image/jpeg", meta.ContentType)
	assert.Equal(t, int64(2048), meta.ContentLength)
	assert.Equal(t, modified, meta.LastModified)
	assert.Equal(t, `"abc123"`, meta.ETag)
}

func TestStatFileReturnsError(t *testing.T) {
	stub := &stubS3{headErr: &smithy.GenericAPIError{Code: "NotFound", Message: "no such key"}}
	repo := newS3TestRepo(stub)

	_, err := repo.StatFile(context.Background(), "receipt.jpg")
	require.Error(t, err)
	assert.Equal(t, "NotFound", apiErrorCode(err))
}

func TestAPIErrorCodeIgnoresPlainErrors(t *testing.T) {
	assert.Equal(t, "", apiErrorCode(errors.New("dial tcp: connection refused")))
	assert.Equal(t, "", apiErrorCode(nil))
}
