package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/frnnnnn/Vision360/internal/config"
)

// Result is the recognizer's answer for one frame.
type Result struct {
	Confidence     float64  `json:"confidence"`
	FaceSimilarity *float64 `json:"face_similarity,omitempty"`
	FaceID         *string  `json:"face_id,omitempty"`
	PersonName     *string  `json:"person_name,omitempty"`
	Labels         []Label  `json:"labels,omitempty"`
}

// Label is a secondary detection (e.g. "Backpack", "Vehicle") reported
// alongside the primary person decision.
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Matched reports whether the engine bound this face to an enrolled
// identity. Similarity alone is not a match.
func (r Result) Matched() bool {
	return r.FaceID != nil && *r.FaceID != ""
}

// Service detects people and matches faces in a frame.
type Service interface {
	DetectAndMatch(ctx context.Context, image []byte) (Result, error)
}

// Client talks to the face engine over HTTP. One POST per frame; the
// caller owns the deadline via ctx.
type Client struct {
	baseURL     string
	minFaceSize int
	http        *http.Client
}

func NewClient(cfg config.RecognitionConfig, thresholds config.Thresholds) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		minFaceSize: thresholds.MinFaceSize,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// DetectAndMatch posts the frame to /detect as multipart form data and
// decodes the engine's verdict.
func (c *Client) DetectAndMatch(ctx context.Context, image []byte) (Result, error) {
	if len(image) == 0 {
		return Result{}, fmt.Errorf("empty image")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fw, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return Result{}, fmt.Errorf("create image part: %w", err)
	}
	if _, err := fw.Write(image); err != nil {
		return Result{}, fmt.Errorf("write image part: %w", err)
	}
	if err := writer.WriteField("min_face_size", strconv.Itoa(c.minFaceSize)); err != nil {
		return Result{}, fmt.Errorf("write min_face_size: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", &buf)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call detect: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read detect response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("detect status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("parse detect response: %w", err)
	}
	return result, nil
}
