package handlers

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const maxPageLimit = 50

// maxPage keeps page*limit within int on 32-bit platforms.
const maxPage = math.MaxInt32 / maxPageLimit

// pageParams reads the 1-based page and the page size from the query.
// Missing, malformed or non-positive values fall back to page 1 and
// defaultLimit; limit is capped at maxPageLimit and page at maxPage.
func pageParams(c echo.Context, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if page > maxPage {
		page = maxPage
	}
	return page, limit
}
