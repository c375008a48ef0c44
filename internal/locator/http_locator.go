package locator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	apperrors "go-shelf-inspector/internal/errors"
	"go-shelf-inspector/internal/logger"
	"go-shelf-inspector/pkg/models"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

const maxAttempts = 3

// HTTPLocator sends the shelf photo to an object-detection inference service.
//
// The service receives a multipart form with the JPEG-encoded photo in field
// "image" and the model identifier in field "model". It answers with
// {"boxes": [...]} where each box is either {"x1":..,"y1":..,"x2":..,"y2":..}
// or an array [x1, y1, x2, y2, ...]. Coordinates are truncated to integers.
type HTTPLocator struct {
	endpoint string
	model    string
	client   *http.Client
	backoff  func(attempt int) time.Duration
}

// NewHTTPLocator creates a locator for endpoint. model is forwarded as-is.
func NewHTTPLocator(endpoint, model string, timeout time.Duration) *HTTPLocator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPLocator{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
	}
}

type detectionResponse struct {
	Boxes []json.RawMessage `json:"boxes"`
}

type objectBox struct {
	X1 *float64 `json:"x1"`
	Y1 *float64 `json:"y1"`
	X2 *float64 `json:"x2"`
	Y2 *float64 `json:"y2"`
}

// Locate implements Locator.
func (l *HTTPLocator) Locate(ctx context.Context, img image.Image) ([]models.BoundingBox, error) {
	body, contentType, err := l.encodeRequest(img)
	if err != nil {
		return nil, apperrors.NewProcessingError("encode detection request", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		boxes, retry, err := l.do(ctx, body, contentType)
		if err == nil {
			return boxes, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}

		logger.WithFields(logrus.Fields{
			"endpoint": l.endpoint,
			"attempt":  attempt + 1,
		}).WithError(err).Warn("Detection request failed, retrying")

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.backoff(attempt)):
			}
		}
	}
	return nil, apperrors.NewNetworkError("object detection failed", lastErr)
}

func (l *HTTPLocator) encodeRequest(img image.Image) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("model", l.model); err != nil {
		return nil, "", err
	}
	part, err := mw.CreateFormFile("image", "shelf.jpg")
	if err != nil {
		return nil, "", err
	}
	if err := imaging.Encode(part, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// do performs one attempt. retry reports whether the failure is transient.
func (l *HTTPLocator) do(ctx context.Context, body []byte, contentType string) (boxes []models.BoundingBox, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("invalid detector URL: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("server error: status code %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		io.Copy(io.Discard, resp.Body)
		return nil, false, fmt.Errorf("client error: status code %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	var dr detectionResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, false, fmt.Errorf("decode detection response: %w", err)
	}
	boxes, err = parseBoxes(dr.Boxes)
	return boxes, false, err
}

func parseBoxes(raw []json.RawMessage) ([]models.BoundingBox, error) {
	boxes := make([]models.BoundingBox, 0, len(raw))
	for i, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) > 0 && r[0] == '[' {
			var coords []float64
			if err := json.Unmarshal(r, &coords); err != nil {
				return nil, fmt.Errorf("box %d: %w", i, err)
			}
			if len(coords) < 4 {
				return nil, fmt.Errorf("box %d: expected at least 4 coordinates, got %d", i, len(coords))
			}
			boxes = append(boxes, models.BoundingBox{
				X1: int(coords[0]), Y1: int(coords[1]), X2: int(coords[2]), Y2: int(coords[3]),
			})
			continue
		}

		var ob objectBox
		if err := json.Unmarshal(r, &ob); err != nil {
			return nil, fmt.Errorf("box %d: %w", i, err)
		}
		if ob.X1 == nil || ob.Y1 == nil || ob.X2 == nil || ob.Y2 == nil {
			return nil, fmt.Errorf("box %d: missing coordinates", i)
		}
		boxes = append(boxes, models.BoundingBox{
			X1: int(*ob.X1), Y1: int(*ob.Y1), X2: int(*ob.X2), Y2: int(*ob.Y2),
		})
	}
	return boxes, nil
}
