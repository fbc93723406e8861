package matches

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	t.Run("missing narrative is tolerated", func(t *testing.T) {
		err := httperror.NewHTTPError(http.StatusNotFound, "narrative profile not found")
		assert.True(t, isNotFound(err))
	})

	t.Run("repository failures are not", func(t *testing.T) {
		assert.False(t, isNotFound(httperror.NewHTTPError(http.StatusInternalServerError, "failed to get narrative profile")))
		assert.False(t, isNotFound(fmt.Errorf("connection refused")))
	})
}
