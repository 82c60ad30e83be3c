package memory

import (
	"testing"

	"github.com/ericfisherdev/reviewledger/internal/adapter/driven/storetest"
	"github.com/ericfisherdev/reviewledger/internal/domain/port/driven"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(_ *testing.T) driven.StateStore {
		return NewStore()
	})
}
