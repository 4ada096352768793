package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorWrapping(t *testing.T) {
	base := errors.New("item id does not exist")
	err := fmt.Errorf("replay: %w", PreconditionFailed("item \"x\"", base))

	require.True(t, IsAppError(err))
	require.True(t, IsCode(err, CodePreconditionFailed))
	require.False(t, IsCode(err, CodeValidationFailed))
	require.ErrorIs(t, err, base)
	require.Equal(t, "replay: item \"x\": item id does not exist", err.Error())
}

func TestValidationFailedCarriesDetails(t *testing.T) {
	err := ValidationFailed("add item", errors.New("validation failed"), []string{"qty"})
	require.Equal(t, CodeValidationFailed, err.Code)
	require.Equal(t, []string{"qty"}, err.Details)

	require.Equal(t, "plain", NewAppError("X", "plain", nil).Error())
	require.False(t, IsAppError(errors.New("other")))
	require.False(t, IsCode(nil, CodeValidationFailed))
}
