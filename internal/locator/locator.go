// Package locator finds product bounding boxes in shelf photos.
package locator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"go-shelf-inspector/pkg/models"
)

// Locator returns one bounding box per detected object, in detector order.
type Locator interface {
	Locate(ctx context.Context, img image.Image) ([]models.BoundingBox, error)
}

// StaticLocator returns a fixed list of boxes regardless of the image.
type StaticLocator struct {
	Boxes []models.BoundingBox
}

func (s StaticLocator) Locate(ctx context.Context, img image.Image) ([]models.BoundingBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]models.BoundingBox(nil), s.Boxes...), nil
}

// Unavailable fails every call. It stands in when no detector is configured
// so analyses report the problem instead of flagging every product missing.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Locate(ctx context.Context, img image.Image) ([]models.BoundingBox, error) {
	if u.Reason == "" {
		return nil, errors.New("object detector is not configured")
	}
	return nil, errors.New(u.Reason)
}

// ParseBoxes parses "x1,y1,x2,y2;x1,y1,x2,y2" into boxes.
func ParseBoxes(list string) ([]models.BoundingBox, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}
	var boxes []models.BoundingBox
	for i, part := range strings.Split(list, ";") {
		fields := strings.Split(strings.TrimSpace(part), ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("box %d: expected 4 coordinates, got %d", i, len(fields))
		}
		var c [4]int
		for j, f := range fields {
			v, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				return nil, fmt.Errorf("box %d: %w", i, err)
			}
			c[j] = v
		}
		boxes = append(boxes, models.BoundingBox{X1: c[0], Y1: c[1], X2: c[2], Y2: c[3]})
	}
	return boxes, nil
}
