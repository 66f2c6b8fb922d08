package model_test

import (
	"testing"
	"time"

	"github.com/iliyamo/natours-api/internal/model"
)

func TestJSONList_ScanNullIsEmpty(t *testing.T) {
	var l model.JSONList[string]
	if err := l.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) error = %v", err)
	}
	if l == nil || len(l) != 0 {
		t.Errorf("Scan(nil) = %#v; want empty list", l)
	}
}

func TestJSONList_ScanBytes(t *testing.T) {
	var l model.JSONList[time.Time]
	if err := l.Scan([]byte(`["2027-04-25T09:00:00Z"]`)); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(l) != 1 || l[0].Month() != time.April {
		t.Errorf("Scan() = %v", l)
	}
}
