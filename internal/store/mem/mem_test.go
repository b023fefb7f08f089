package mem

import (
	"testing"

	"github.com/opencourt/courtwatch/internal/store"
	"github.com/opencourt/courtwatch/internal/store/storetest"
)

func TestMemStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
