package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/SBCM-Alliance/G-Cart/internal/adapters/catalog"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/directory"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/http/api"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/repository"
	"github.com/SBCM-Alliance/G-Cart/internal/adapters/ws"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/session"
	"github.com/SBCM-Alliance/G-Cart/internal/domain/team"
	"github.com/SBCM-Alliance/G-Cart/pkg/logger"
)

func init() {
	_ = logger.Init()
}

var testNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

// mockDependencies keeps sessions in a map and drives the real session
// state machine, so handlers see realistic results.
type mockDependencies struct {
	mu        sync.Mutex
	owner     model.Owner
	projects  []model.Project
	partners  []model.Partner
	formURL   string
	sessions  map[string]*session.Session
	nextID    int
	subs      map[string]int
	createErr error
}

func newMockDependencies() *mockDependencies {
	return &mockDependencies{
		owner: model.Owner{Name: "G-Cart建設", Location: "柏市", TradeType: "Civil", Capacity: 30_000_000},
		projects: []model.Project{
			{ID: 101, Name: "柏の葉 道路改良", Location: "柏市・柏の葉", Budget: 50_000_000, RequiredTags: []string{"Paving", "Security"}},
			{ID: 102, Name: "小規模補修", Location: "流山市", Budget: 20_000_000, RequiredTags: []string{"Paving"}},
		},
		partners: []model.Partner{
			{Name: "柏舗装", TradeType: "Paving", Location: "柏市", Capacity: 30_000_000},
			{Name: "東葛電設", TradeType: "Electrical", Location: "松戸市", Capacity: 10_000_000},
		},
		sessions: make(map[string]*session.Session),
		subs:     make(map[string]int),
	}
}

func (m *mockDependencies) Owner() model.Owner { return m.owner }

func (m *mockDependencies) Projects(_ context.Context, q catalog.Query) ([]model.Project, error) {
	return catalog.Filter(m.projects, q), nil
}

func (m *mockDependencies) Project(_ context.Context, id int) (model.Project, error) {
	for _, p := range m.projects {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Project{}, catalog.ErrNotFound
}

func (m *mockDependencies) Directory(context.Context) directory.Snapshot {
	return directory.Snapshot{Partners: m.partners, Origin: directory.OriginLive, FetchedAt: testNow}
}

func (m *mockDependencies) PartnerFormURL() string { return m.formURL }

func (m *mockDependencies) CreateSession(context.Context) (*session.Session, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := session.New(fmt.Sprintf("s-%d", m.nextID), m.owner, testNow)
	m.sessions[s.ID] = s
	return s, nil
}

func (m *mockDependencies) Session(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (m *mockDependencies) EndSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *mockDependencies) SelectProject(ctx context.Context, id string, projectID int) (*session.Session, error) {
	s, err := m.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := m.Project(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := s.SelectProject(p, testNow); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *mockDependencies) Back(ctx context.Context, id string) (*session.Session, error) {
	s, err := m.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Back(testNow)
	return s, nil
}

func (m *mockDependencies) Recommend(ctx context.Context, id string) (team.Recommendation, error) {
	s, err := m.Session(ctx, id)
	if err != nil {
		return team.Recommendation{}, err
	}
	return s.Recommend(nil, m.partners)
}

func (m *mockDependencies) Offer(ctx context.Context, id, partner string) (*session.Session, bool, error) {
	s, err := m.Session(ctx, id)
	if err != nil {
		return nil, false, err
	}
	_, added, err := s.Offer(partner, m.partners, testNow)
	if err != nil {
		return nil, false, err
	}
	return s, added, nil
}

func (m *mockDependencies) ConfirmBid(ctx context.Context, id string) (*session.Session, error) {
	s, err := m.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.ConfirmBid(testNow); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *mockDependencies) Subscribe(id string, _ ws.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[id]++
	return nil
}

func (m *mockDependencies) Unsubscribe(id string, _ ws.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[id]--
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any {
	return m.stats
}

func newTestRouter(deps *mockDependencies) http.Handler {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"sessions": 1}})
	return api.NewRouter(api.RouterConfig{Server: server})
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := newMockDependencies()
		server := api.NewServer(deps, &mockStatsProvider{})
		r := chi.NewRouter()

		Convey("When registering routes", func() {
			server.Register(r)

			Convey("Then the health endpoint serves metrics", func() {
				w := do(r, http.MethodGet, "/healthz", "")
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("And stats endpoint should be accessible", func() {
				w := do(r, http.MethodGet, "/stats", "")
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("And unknown methods are rejected", func() {
				w := do(r, http.MethodPost, "/projects", "{}")
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestProjectsEndpoints(t *testing.T) {
	Convey("Given the catalog endpoints", t, func() {
		h := newTestRouter(newMockDependencies())

		Convey("When listing all projects", func() {
			w := do(h, http.MethodGet, "/projects", "")

			Convey("Then each project carries the owner's shortfall", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["count"], ShouldEqual, float64(2))
				projects := body["projects"].([]any)
				first := projects[0].(map[string]any)
				So(first["shortfall"], ShouldEqual, float64(20_000_000))
				So(first["solo_biddable"], ShouldBeFalse)
				So(first["budget_display"], ShouldEqual, "¥50,000,000")
				second := projects[1].(map[string]any)
				So(second["solo_biddable"], ShouldBeTrue)
			})
		})

		Convey("When filtering by area", func() {
			w := do(h, http.MethodGet, "/projects?area=流山市", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["count"], ShouldEqual, float64(1))
		})

		Convey("When filtering by tag", func() {
			w := do(h, http.MethodGet, "/projects?tag=Security", "")
			So(decodeBody(w)["count"], ShouldEqual, float64(1))
		})

		Convey("When fetching one project", func() {
			w := do(h, http.MethodGet, "/projects/101", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(decodeBody(w)["name"], ShouldEqual, "柏の葉 道路改良")
		})

		Convey("When fetching an unknown project", func() {
			w := do(h, http.MethodGet, "/projects/999", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody(w)["code"], ShouldEqual, "project_not_found")
		})

		Convey("When the project ID is not a number", func() {
			w := do(h, http.MethodGet, "/projects/abc", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeBody(w)["code"], ShouldEqual, "bad_request")
		})
	})
}

func TestPartnersEndpoints(t *testing.T) {
	Convey("Given the partner endpoints", t, func() {
		deps := newMockDependencies()
		h := newTestRouter(deps)

		Convey("When listing partners", func() {
			w := do(h, http.MethodGet, "/partners", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decodeBody(w)
			So(body["origin"], ShouldEqual, "live")
			So(body["count"], ShouldEqual, float64(2))
		})

		Convey("When no registration form is configured", func() {
			w := do(h, http.MethodGet, "/partners/register", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody(w)["code"], ShouldEqual, "not_configured")
		})

		Convey("When a registration form is configured", func() {
			deps.formURL = "https://forms.example.com/partner"
			w := do(h, http.MethodGet, "/partners/register", "")
			So(w.Code, ShouldEqual, http.StatusFound)
			So(w.Header().Get("Location"), ShouldEqual, "https://forms.example.com/partner")
		})
	})
}

func TestSessionFlow(t *testing.T) {
	Convey("Given a fresh session", t, func() {
		deps := newMockDependencies()
		h := newTestRouter(deps)

		w := do(h, http.MethodPost, "/sessions", "")
		So(w.Code, ShouldEqual, http.StatusCreated)
		created := decodeBody(w)
		So(created["phase"], ShouldEqual, "browsing")
		id := created["id"].(string)
		base := "/sessions/" + id

		Convey("When selecting the 50M project", func() {
			w := do(h, http.MethodPut, base+"/project", `{"project_id":101}`)

			Convey("Then the session is team building with a 20M shortfall", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["phase"], ShouldEqual, "team_building")
				So(body["shortfall"], ShouldEqual, float64(20_000_000))
				So(body["biddable"], ShouldBeFalse)
			})

			Convey("And recommendations only list matching trades", func() {
				w := do(h, http.MethodGet, base+"/recommendations", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				cands := decodeBody(w)["candidates"].([]any)
				So(len(cands), ShouldEqual, 1)
			})

			Convey("And bidding is refused before the team is large enough", func() {
				w := do(h, http.MethodPost, base+"/bid", "")
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(w)["code"], ShouldEqual, "not_biddable")
			})

			Convey("And offering the paving partner makes the team biddable", func() {
				w := do(h, http.MethodPost, base+"/offers", `{"partner":"柏舗装"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["added"], ShouldBeTrue)
				sess := body["session"].(map[string]any)
				So(sess["biddable"], ShouldBeTrue)
				So(sess["progress"], ShouldEqual, float64(1))

				Convey("Then a second offer is a no-op", func() {
					w := do(h, http.MethodPost, base+"/offers", `{"partner":"柏舗装"}`)
					So(w.Code, ShouldEqual, http.StatusOK)
					So(decodeBody(w)["added"], ShouldBeFalse)
				})

				Convey("Then confirming the bid returns the JV summary", func() {
					w := do(h, http.MethodPost, base+"/bid", "")
					So(w.Code, ShouldEqual, http.StatusOK)
					body := decodeBody(w)
					So(body["phase"], ShouldEqual, "confirmed")
					result := body["result"].(map[string]any)
					So(len(result["members"].([]any)), ShouldEqual, 2)
				})
			})

			Convey("And an unknown partner is reported as unavailable", func() {
				w := do(h, http.MethodPost, base+"/offers", `{"partner":"消えた会社"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(decodeBody(w)["code"], ShouldEqual, "offer_unavailable")
			})

			Convey("And a partner with the wrong trade is not eligible", func() {
				w := do(h, http.MethodPost, base+"/offers", `{"partner":"東葛電設"}`)
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeBody(w)["code"], ShouldEqual, "not_eligible")
			})

			Convey("And going back returns to browsing", func() {
				w := do(h, http.MethodDelete, base+"/project", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["phase"], ShouldEqual, "browsing")
				So(body["shortfall"], ShouldEqual, float64(0))
			})
		})

		Convey("When the request body is malformed", func() {
			w := do(h, http.MethodPut, base+"/project", `{"project_id":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body fails validation", func() {
			w := do(h, http.MethodPost, base+"/offers", `{"partner":""}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body has unknown fields", func() {
			w := do(h, http.MethodPut, base+"/project", `{"project_id":101,"extra":true}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When offering while browsing", func() {
			w := do(h, http.MethodPost, base+"/offers", `{"partner":"柏舗装"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(decodeBody(w)["code"], ShouldEqual, "invalid_state")
		})

		Convey("When selecting an unknown project", func() {
			w := do(h, http.MethodPut, base+"/project", `{"project_id":999}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When ending the session", func() {
			w := do(h, http.MethodDelete, base, "")
			So(w.Code, ShouldEqual, http.StatusNoContent)

			Convey("Then it is gone", func() {
				w := do(h, http.MethodGet, base, "")
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decodeBody(w)["code"], ShouldEqual, "session_not_found")
			})
		})
	})
}

func TestSessionErrors(t *testing.T) {
	Convey("Given a service that cannot create sessions", t, func() {
		deps := newMockDependencies()
		deps.createErr = fmt.Errorf("store down")
		h := newTestRouter(deps)

		Convey("When creating a session", func() {
			w := do(h, http.MethodPost, "/sessions", "")

			Convey("Then the cause is not leaked", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				body := decodeBody(w)
				So(body["code"], ShouldEqual, "internal_error")
				So(body["message"], ShouldNotContainSubstring, "store down")
			})
		})
	})
}

func TestStreamEndpoint(t *testing.T) {
	Convey("Given a running server", t, func() {
		deps := newMockDependencies()
		srv := httptest.NewServer(newTestRouter(deps))
		defer srv.Close()

		Convey("When streaming an unknown session", func() {
			resp, err := http.Get(srv.URL + "/sessions/nope/events")
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestNotFound(t *testing.T) {
	Convey("Given the router", t, func() {
		h := newTestRouter(newMockDependencies())

		Convey("When requesting an unknown path", func() {
			w := do(h, http.MethodGet, "/unknown", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(decodeBody(w)["code"], ShouldEqual, "not_found")
		})
	})
}

func TestRouterMiddleware(t *testing.T) {
	Convey("Given a router with security headers and a tight rate limit", t, func() {
		limit, err := api.RateLimit("2-M")
		So(err, ShouldBeNil)
		h := api.NewRouter(api.RouterConfig{
			Server:    api.NewServer(newMockDependencies(), &mockStatsProvider{}),
			Secure:    api.SecurityHeaders(true),
			RateLimit: limit,
			Routes: []func(chi.Router){
				func(r chi.Router) {
					r.Get("/extra", func(w http.ResponseWriter, _ *http.Request) {
						w.WriteHeader(http.StatusTeapot)
					})
				},
			},
		})

		Convey("Then responses carry security headers", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Header().Get("X-Content-Type-Options"), ShouldEqual, "nosniff")
			So(w.Header().Get("X-Frame-Options"), ShouldEqual, "DENY")
			So(w.Header().Get("Content-Security-Policy"), ShouldContainSubstring, "connect-src 'self' ws: wss:")
		})

		Convey("Then mounted handlers are reachable", func() {
			w := do(h, http.MethodGet, "/extra", "")
			So(w.Code, ShouldEqual, http.StatusTeapot)
		})

		Convey("Then the third request in a minute is throttled", func() {
			do(h, http.MethodGet, "/stats", "")
			do(h, http.MethodGet, "/stats", "")
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
		})
	})
}
