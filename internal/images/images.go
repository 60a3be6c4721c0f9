// Package images resolves the product image URL written into every
// annotation.
package images

import (
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"

	"orderimages/internal/annotations"
)

// Resolve picks the image URL for a deployment. A Cloudinary asset wins when
// both cloudinaryURL and publicID are set; the delivery URL is built locally
// and nothing is uploaded. Otherwise fallback is used, and when that is empty
// the placeholder.
func Resolve(cloudinaryURL, publicID, fallback string) (string, error) {
	cloudinaryURL = strings.TrimSpace(cloudinaryURL)
	publicID = strings.TrimSpace(publicID)

	if cloudinaryURL != "" && publicID != "" {
		return DeliveryURL(cloudinaryURL, publicID)
	}
	if f := strings.TrimSpace(fallback); f != "" {
		return f, nil
	}
	return annotations.PlaceholderImageURL, nil
}

// DeliveryURL returns the secure delivery URL of an image asset.
func DeliveryURL(cloudinaryURL, publicID string) (string, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return "", fmt.Errorf("cloudinary init: %w", err)
	}
	cld.Config.URL.Secure = true

	img, err := cld.Image(publicID)
	if err != nil {
		return "", fmt.Errorf("cloudinary image %q: %w", publicID, err)
	}
	u, err := img.String()
	if err != nil {
		return "", fmt.Errorf("cloudinary image %q: %w", publicID, err)
	}
	return u, nil
}
