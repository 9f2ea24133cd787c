package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-dataset-aggregator/internal/store"
	"github.com/i474232898/weather-dataset-aggregator/internal/weather"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("dataset_id", func(fl validator.FieldLevel) bool {
		return weather.DatasetID(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("granularity", func(fl validator.FieldLevel) bool {
		return weather.Granularity(fl.Field().String()).Valid()
	})
	return v
}

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Aggregator   *weather.Aggregator
	History      *store.MemoryStore
	DefaultRange weather.DateRange
	Logger       zerolog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	v1 := app.Group("/api/v1")

	v1.Post("/datasets", func(c *fiber.Ctx) error {
		var req datasetRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		key, rng, err := req.resolve(d.DefaultRange)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec := weather.RequestRecord{Key: key, Range: rng}
		isNew := d.Aggregator.Register(key, rng)

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"fingerprint": rec.Fingerprint(),
			"new":         isNew,
			"activeRange": rng,
		})
	})

	v1.Get("/datasets", func(c *fiber.Ctx) error {
		return c.JSON(d.Aggregator.Status())
	})

	v1.Get("/datasets/:granularity/:id", func(c *fiber.Ctx) error {
		key, err := parseKeyParams(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		series, epoch := d.Aggregator.Current(key)
		return c.JSON(newSeriesView(key, epoch, series))
	})

	v1.Get("/datasets/:granularity/:id/stream", func(c *fiber.Ctx) error {
		key, err := parseKeyParams(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rq := rangeQuery{Start: c.Query("start"), End: c.Query("end")}
		rng, err := rq.resolve(d.DefaultRange)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sub := d.Aggregator.RegisterAndSubscribe(key, rng)
		streamSubscription(c, sub, d.Logger)
		return nil
	})

	v1.Get("/responses/latest", func(c *fiber.Ctx) error {
		resp, err := d.History.Latest()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no combined response fetched yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read response history")
		}
		return c.JSON(resp)
	})

	v1.Get("/responses/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		responses, err := d.History.Range(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no combined responses in requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read response history")
		}

		return c.JSON(fiber.Map{
			"from":      req.From,
			"to":        req.To,
			"responses": responses,
		})
	})
}

// seriesView is the JSON shape of one projected dataset.
type seriesView struct {
	Key     weather.DatasetKey `json:"key"`
	Epoch   uint64             `json:"epoch"`
	Ready   bool               `json:"ready"`
	Values  []*float64         `json:"values"`
	Labels  []string           `json:"labels"`
	Summary *weather.Summary   `json:"summary,omitempty"`
}

func newSeriesView(key weather.DatasetKey, epoch uint64, s weather.Series) seriesView {
	v := seriesView{
		Key:    key,
		Epoch:  epoch,
		Ready:  !s.Empty(),
		Values: s.Values,
		Labels: s.Labels,
	}
	if v.Ready {
		sum := weather.Summarize(s)
		v.Summary = &sum
	}
	return v
}

// rangeQuery is an optional start/end pair; both or neither must be set.
type rangeQuery struct {
	Start string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `json:"end" validate:"omitempty,datetime=2006-01-02"`
}

func (q rangeQuery) resolve(def weather.DateRange) (weather.DateRange, error) {
	if err := validate.Struct(q); err != nil {
		return weather.DateRange{}, err
	}
	if (q.Start == "") != (q.End == "") {
		return weather.DateRange{}, errors.New("start and end must be given together")
	}
	if q.Start == "" {
		return def, nil
	}
	rng, err := weather.NewDateRange(q.Start, q.End)
	if err != nil {
		return weather.DateRange{}, err
	}
	if rng.End.Before(rng.Start) {
		return weather.DateRange{}, errors.New("end must not be before start")
	}
	return rng, nil
}

// datasetRequest is the body of POST /datasets.
type datasetRequest struct {
	ID          string `json:"id" validate:"required,dataset_id"`
	Granularity string `json:"granularity" validate:"required,granularity"`
	rangeQuery
}

func (r datasetRequest) resolve(def weather.DateRange) (weather.DatasetKey, weather.DateRange, error) {
	if err := validate.Struct(r); err != nil {
		return weather.DatasetKey{}, weather.DateRange{}, err
	}
	rng, err := r.rangeQuery.resolve(def)
	if err != nil {
		return weather.DatasetKey{}, weather.DateRange{}, err
	}
	key := weather.DatasetKey{
		ID:          weather.DatasetID(r.ID),
		Granularity: weather.Granularity(r.Granularity),
	}
	return key, rng, nil
}

// keyParams holds the path parameters identifying a dataset.
type keyParams struct {
	ID          string `validate:"required,dataset_id"`
	Granularity string `validate:"required,granularity"`
}

func parseKeyParams(c *fiber.Ctx) (weather.DatasetKey, error) {
	p := keyParams{
		ID:          c.Params("id"),
		Granularity: c.Params("granularity"),
	}
	if err := validate.Struct(p); err != nil {
		return weather.DatasetKey{}, err
	}
	return weather.DatasetKey{
		ID:          weather.DatasetID(p.ID),
		Granularity: weather.Granularity(p.Granularity),
	}, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
