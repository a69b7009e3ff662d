package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/core/ports"
)

const (
	formLogo  = "logo"
	formStamp = "stamp"
)

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// formAsset reads an optional uploaded file. A missing field yields nil.
func formAsset(c echo.Context, field string, maxBytes int64) (*ports.AssetUpload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, field, err)
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidInput, field, maxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, field)
	}
	return &ports.AssetUpload{Filename: fh.Filename, Data: data}, nil
}

// formAssets reads the logo and stamp slots of a multipart request.
func formAssets(c echo.Context, maxBytes int64) (logo, stamp *ports.AssetUpload, err error) {
	if !isMultipart(c) {
		return nil, nil, nil
	}
	if logo, err = formAsset(c, formLogo, maxBytes); err != nil {
		return nil, nil, err
	}
	if stamp, err = formAsset(c, formStamp, maxBytes); err != nil {
		return nil, nil, err
	}
	return logo, stamp, nil
}

// optionalFormValue returns nil when the field is absent from the form, so
// that an omitted field is distinguishable from an empty one.
func optionalFormValue(c echo.Context, field string) *string {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	vals, ok := form.Value[field]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}
