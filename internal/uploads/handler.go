package uploads

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"research-portal/internal/shared/server/respond"
	"research-portal/internal/shared/storage/object"
	"research-portal/internal/shared/telemetry"
)

const (
	defaultMaxUploadBytes = 50 << 20
	presignExpires        = 15 * time.Minute
	defaultRegion         = "us-east-1"
	defaultUploadsPrefix  = "documents/"
)

var allowedContentTypes = map[string]struct{}{
	"application/pdf": {},
}

// Presigner signs PUT requests for direct browser uploads.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Handler issues presigned upload URLs so large PDFs bypass the API body
// limit. The resulting key is then passed to /process/from-storage.
type Handler struct {
	presign     Presigner
	bucket      string
	prefix      string
	storePrefix string
	maxBytes    int64
}

// Options configures NewHandler. Bucket and StorePrefix must match the S3
// object store so returned keys resolve through it.
type Options struct {
	Region      string
	Bucket      string
	Prefix      string
	StorePrefix string
	MaxBytes    int64
}

// NewHandler loads AWS configuration and builds a presigning handler.
func NewHandler(ctx context.Context, opts Options) (*Handler, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("uploads bucket is required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = defaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewHandlerWithPresigner(s3.NewPresignClient(s3.NewFromConfig(cfg)), opts), nil
}

// NewHandlerWithPresigner builds a handler around an existing presigner.
func NewHandlerWithPresigner(presign Presigner, opts Options) *Handler {
	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = defaultUploadsPrefix
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &Handler{
		presign:     presign,
		bucket:      strings.TrimSpace(opts.Bucket),
		prefix:      prefix,
		storePrefix: strings.Trim(strings.TrimSpace(opts.StorePrefix), "/"),
		maxBytes:    maxBytes,
	}
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	Key              string `json:"key"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// RegisterRoutes attaches the presign route to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads/presign", h.presignUpload)
}

func (h *Handler) presignUpload(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "contentType is not allowed", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > h.maxBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}

	key, err := object.DocumentKey(h.prefix, req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName", nil)
		return
	}
	c.Set("fileName", req.FileName)
	c.Set("sizeBytes", req.SizeBytes)

	objectKey := key
	if h.storePrefix != "" {
		objectKey = h.storePrefix + "/" + key
	}

	expires := presignExpires
	out, err := h.presign.PresignPutObject(c.Request.Context(), presignInput(h.bucket, objectKey, req.ContentType), func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"err":          err.Error(),
			"bucket":       h.bucket,
			"key":          objectKey,
			"content_type": req.ContentType,
			"size_bytes":   req.SizeBytes,
			"request_id":   c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.JSON(c, http.StatusOK, presignResponse{
		UploadURL:        out.URL,
		Key:              key,
		ExpiresInSeconds: int64(expires.Seconds()),
	})
}

func presignInput(bucket, key, contentType string) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
}
