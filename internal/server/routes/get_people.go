package routes

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"cloutgraph/internal/server/middleware"
	"cloutgraph/pkg/logger"
)

// GetPeopleHandler lists every person with their current clout score,
// ordered best first.
func GetPeopleHandler(c echo.Context) error {
	type personData struct {
		Key         string  `json:"key"`
		DisplayName string  `json:"display_name,omitempty"`
		Score       int     `json:"score"`
		RawRank     float64 `json:"raw_rank"`
	}

	type getPeopleResponse struct {
		Message string       `json:"message,omitempty"`
		People  []personData `json:"people"`
	}

	ctx := c.Request().Context()
	app := c.(*middleware.AppContext).App

	persons, err := app.Store.AllPersons(ctx)
	if err != nil {
		logger.Error("Failed to list persons", "err", err)
		return c.JSON(http.StatusInternalServerError, getPeopleResponse{
			Message: "Internal server error",
		})
	}

	people := make([]personData, 0, len(persons))
	for _, p := range persons {
		people = append(people, personData{
			Key:         p.Key,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			RawRank:     p.RawRank,
		})
	}
	sort.Slice(people, func(i, j int) bool {
		if people[i].Score != people[j].Score {
			return people[i].Score > people[j].Score
		}
		return people[i].Key < people[j].Key
	})

	return c.JSON(http.StatusOK, getPeopleResponse{People: people})
}
