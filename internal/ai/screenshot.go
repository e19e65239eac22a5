package ai

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"

	"github.com/v0xg/formpilot/internal/driver"
)

// maxShotWidth keeps deep-think screenshots small enough for one prompt
const maxShotWidth = 1024

// screenshot captures the viewport, scales it down to maxWidth and
// re-encodes it as JPEG
func screenshot(ctx context.Context, page driver.Page, maxWidth uint) ([]byte, error) {
	raw, err := page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	if uint(img.Bounds().Dx()) > maxWidth {
		// Height 0 keeps the aspect ratio
		img = resize.Resize(maxWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}
