package routes

import (
	"fmt"
	"net/http"

	"device-reservation/internal/utils"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
)

const QRImageSize = 256

// QRCode serves a PNG pointing phones on the LAN at the dashboard.
func QRCode(r *gin.RouterGroup) {
	r.GET("/qr.png", func(c *gin.Context) {
		url := utils.UrlFor(c, BaseURL(c))

		png, err := qrcode.Encode(url, qrcode.Medium, QRImageSize)
		if err != nil {
			AbortWithError(c, fmt.Errorf("%w: %v", ErrQRGeneration, err))
			return
		}
		c.Header("Cache-Control", "public, max-age=3600")
		c.Data(http.StatusOK, "image/png", png)
	})
}
