package generate

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"datagen/internal/stream"
	"datagen/middleware"

	"github.com/gin-gonic/gin"
	"github.com/guregu/null/v5"
)

var errInvalidQuery = errors.New("invalid query parameter")

type Handler struct {
	svc *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{svc: service}
}

func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	v1 := api.Group("/v1/generate")
	{
		v1.GET("", h.Generate)
		v1.GET("/progress", h.Progress)
	}
	api.GET("/generate", h.Generate)
}

// generateQuery holds the optional request parameters. Unset values fall
// back to json, compact output and a random seed.
type generateQuery struct {
	Size   string
	Format null.String
	Pretty null.Bool
	Seed   null.String
}

func parseQuery(c *gin.Context) (generateQuery, error) {
	q := generateQuery{Size: c.Query("size")}

	format, ok := c.GetQuery("format")
	q.Format = null.NewString(format, ok && format != "")

	if err := q.Pretty.UnmarshalText([]byte(c.Query("pretty"))); err != nil {
		return q, fmt.Errorf("%w: pretty must be true or false", errInvalidQuery)
	}

	// Seeds span the full uint64 range so any X-Seed value can be sent back.
	seed, ok := c.GetQuery("seed")
	q.Seed = null.NewString(seed, ok && seed != "")
	if q.Seed.Valid {
		if _, err := strconv.ParseUint(seed, 10, 64); err != nil {
			return q, fmt.Errorf("%w: seed must be an unsigned integer", errInvalidQuery)
		}
	}

	return q, nil
}

func (q generateQuery) request() stream.Request {
	// parseQuery already rejected seeds that do not parse.
	seed, _ := strconv.ParseUint(q.Seed.ValueOrZero(), 10, 64)
	return stream.Request{
		Size:   q.Size,
		Format: q.Format.ValueOrZero(),
		Pretty: q.Pretty.ValueOrZero(),
		Seed:   seed,
	}
}

func (h *Handler) Generate(c *gin.Context) {
	send := c.MustGet("send").(func(middleware.Response))
	sendStream := c.MustGet("sendStream").(func(middleware.StreamResponse))

	q, err := parseQuery(c)
	if err != nil {
		send(middleware.Response{
			Code:    http.StatusBadRequest,
			Message: err.Error(),
			Error:   err,
		})
		return
	}

	// Client disconnect cancels the request context and with it the pipeline.
	resp, err := h.svc.Generate(c.Request.Context(), c.GetString("requestId"), q.request())
	if err != nil {
		code := http.StatusInternalServerError
		if stream.IsRequestError(err) {
			code = http.StatusBadRequest
		}
		send(middleware.Response{
			Code:    code,
			Message: err.Error(),
			Error:   err,
		})
		return
	}

	sendStream(resp)
}

func (h *Handler) Progress(c *gin.Context) {
	send := c.MustGet("send").(func(middleware.Response))

	send(middleware.Response{
		Code:    http.StatusOK,
		Message: "Active streams",
		Data:    h.svc.Progress(),
	})
}
