package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"github.com/John-Robertt/clashmerge/internal/model"
)

func WriteText(c *gin.Context, status int, body string) {
	c.Data(status, "text/plain; charset=utf-8", []byte(body))
}

func WriteYAML(c *gin.Context, status int, body []byte) {
	c.Data(status, "text/yaml; charset=utf-8", body)
}

func WriteError(c *gin.Context, status int, e model.AppError) {
	b, err := json.Marshal(model.ErrorResponse{Error: e})
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(status, "application/json; charset=utf-8", append(b, '\n'))
}
