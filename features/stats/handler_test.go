package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockRunCounter struct{ mock.Mock }

func (m *MockRunCounter) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRunCounter) CountFailed(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockIndex struct{ mock.Mock }

func (m *MockIndex) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockRunCounter, *MockIndex)
		wantStatus int
		wantCode   string
		wantData   map[string]interface{}
	}{
		{
			name: "Success",
			setupMocks: func(r *MockRunCounter, i *MockIndex) {
				i.On("Count", mock.Anything).Return(120, nil)
				r.On("Count", mock.Anything).Return(4, nil)
				r.On("CountFailed", mock.Anything).Return(1, nil)
			},
			wantStatus: http.StatusOK,
			wantData:   map[string]interface{}{"chunks": float64(120), "runs": float64(4), "failed_runs": float64(1)},
		},
		{
			name: "Index Down",
			setupMocks: func(r *MockRunCounter, i *MockIndex) {
				i.On("Count", mock.Anything).Return(0, errors.New("connection refused"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "INDEX_UNAVAILABLE",
		},
		{
			name: "Run Count Error",
			setupMocks: func(r *MockRunCounter, i *MockIndex) {
				i.On("Count", mock.Anything).Return(3, nil)
				r.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
		{
			name: "Failed Count Error",
			setupMocks: func(r *MockRunCounter, i *MockIndex) {
				i.On("Count", mock.Anything).Return(3, nil)
				r.On("Count", mock.Anything).Return(2, nil)
				r.On("CountFailed", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := new(MockRunCounter)
			idx := new(MockIndex)
			tt.setupMocks(runs, idx)

			h := NewHandler(runs, idx)
			w := httptest.NewRecorder()
			h.GetStats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

			assert.Equal(t, tt.wantStatus, w.Code)

			var body map[string]interface{}
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.wantCode != "" {
				errBody := body["error"].(map[string]interface{})
				assert.Equal(t, tt.wantCode, errBody["code"])
				return
			}
			assert.Equal(t, tt.wantData, body["data"])
		})
	}
}
