package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/John-Robertt/clashmerge/internal/merge"
)

func NewRouter() *gin.Engine {
	return NewRouterWithOptions(Options{})
}

func NewRouterWithOptions(opt Options) *gin.Engine {
	opt = opt.withDefaults()
	m := newMetrics(opt.Registry)
	h := &convertHandler{
		opt:     opt,
		merger:  merge.New(opt.Profile),
		metrics: m,
	}

	r := gin.New()
	r.Use(gin.Recovery(), observability(m))
	r.GET("/healthz", func(c *gin.Context) {
		WriteText(c, http.StatusOK, "ok\n")
	})
	r.GET("/metrics", m.handler)
	r.GET("/sub", h.handleSub)
	return r
}
