package response

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/socialfeed-backend/internal/pkg/apierr"
	pkgerrors "github.com/yungbote/socialfeed-backend/internal/pkg/errors"
)

func TestRespondServiceErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("post 7: %w", pkgerrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{fmt.Errorf("%w: bad type", pkgerrors.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{pkgerrors.ErrDuplicate, http.StatusConflict, "conflict"},
		{apierr.New(http.StatusTooManyRequests, "rate_limited", errors.New("slow down")), http.StatusTooManyRequests, "rate_limited"},
		{errors.New("db exploded"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		RespondServiceError(c, tc.err)
		if rec.Code != tc.status {
			t.Fatalf("%v: status got=%d want=%d", tc.err, rec.Code, tc.status)
		}
		if !strings.Contains(rec.Body.String(), `"code":"`+tc.code+`"`) {
			t.Fatalf("%v: body=%s want code %s", tc.err, rec.Body.String(), tc.code)
		}
	}
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	RespondServiceError(c, errors.New("password=hunter2"))
	if strings.Contains(rec.Body.String(), "hunter2") {
		t.Fatalf("internal error leaked cause: %s", rec.Body.String())
	}
}
