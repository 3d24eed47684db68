package testlog

import (
	"testing"

	"github.com/danmuck/testcentre/internal/logging"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log := logging.L()
	log.Info().Msgf("test=%s", t.Name())
}
