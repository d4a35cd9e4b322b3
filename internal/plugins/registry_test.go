package plugins

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dragonbytelabs/dz/internal/models"
	"github.com/dragonbytelabs/dz/internal/search"
)

type fakePlugin struct {
	name        string
	activateErr error
	registerErr error
	activated   int
	deactivated int
	commands    []search.Action
}

func (p *fakePlugin) Name() string        { return p.name }
func (p *fakePlugin) DisplayName() string { return "Fake " + p.name }
func (p *fakePlugin) Description() string { return "" }
func (p *fakePlugin) Version() string     { return "" }

func (p *fakePlugin) Register(pc *Context) error {
	if p.registerErr != nil {
		return p.registerErr
	}
	if pc.Router != nil {
		pc.Router.Get("/"+p.name, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(p.name))
		})
	}
	return nil
}

func (p *fakePlugin) OnActivate(context.Context) error {
	if p.activateErr != nil {
		return p.activateErr
	}
	p.activated++
	return nil
}

func (p *fakePlugin) OnDeactivate(context.Context) error {
	p.deactivated++
	return nil
}

type commandPlugin struct{ fakePlugin }

func (p *commandPlugin) Commands() []search.Action { return p.commands }

type fakeCatalog struct {
	active map[string]bool
	seen   []*models.Plugin
}

func (c *fakeCatalog) EnsurePlugin(_ context.Context, p *models.Plugin) (*models.Plugin, error) {
	c.seen = append(c.seen, p)
	out := *p
	out.IsActive = c.active[p.Name]
	return &out, nil
}

func TestRegistry_RegisterRejectsDuplicatesAndBadNames(t *testing.T) {
	r := NewRegistry(Context{})

	require.NoError(t, r.Register(&fakePlugin{name: "alpha"}))
	assert.ErrorIs(t, r.Register(&fakePlugin{name: "alpha"}), ErrDuplicate)
	assert.ErrorIs(t, r.Register(&fakePlugin{name: "Bad Name"}), ErrInvalidName)

	boom := errors.New("boom")
	assert.ErrorIs(t, r.Register(&fakePlugin{name: "broken", registerErr: boom}), boom)
	_, ok := r.Get("broken")
	assert.False(t, ok, "failed registration must not linger")
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry(Context{})
	for _, n := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(&fakePlugin{name: n}))
	}
	require.NoError(t, r.Activate(context.Background(), "mid"))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "mid", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)
	assert.True(t, list[1].Active)
	assert.False(t, list[0].Active)
}

func TestRegistry_ActivateRunsHooks(t *testing.T) {
	r := NewRegistry(Context{})
	p := &fakePlugin{name: "alpha"}
	require.NoError(t, r.Register(p))

	require.NoError(t, r.Activate(context.Background(), "alpha"))
	assert.True(t, r.IsActive("alpha"))
	assert.Equal(t, 1, p.activated)

	require.NoError(t, r.Deactivate(context.Background(), "alpha"))
	assert.False(t, r.IsActive("alpha"))
	assert.Equal(t, 1, p.deactivated)

	assert.ErrorIs(t, r.Activate(context.Background(), "missing"), ErrUnknown)
}

func TestRegistry_FailingHookKeepsStatus(t *testing.T) {
	r := NewRegistry(Context{})
	boom := errors.New("boom")
	require.NoError(t, r.Register(&fakePlugin{name: "alpha", activateErr: boom}))

	err := r.Activate(context.Background(), "alpha")
	assert.ErrorIs(t, err, boom)
	assert.False(t, r.IsActive("alpha"))
}

func TestRegistry_GuardHidesInactiveRoutes(t *testing.T) {
	router := chi.NewRouter()
	r := NewRegistry(Context{Router: router})
	require.NoError(t, r.Register(&fakePlugin{name: "alpha"}))

	get := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/alpha", nil))
		return rec
	}

	assert.Equal(t, http.StatusNotFound, get().Code)

	r.Mark("alpha", true)
	rec := get()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alpha", rec.Body.String())

	r.Mark("alpha", false)
	assert.Equal(t, http.StatusNotFound, get().Code)
}

func TestRegistry_CommandsFromActivePlugins(t *testing.T) {
	r := NewRegistry(Context{})
	withCmds := &commandPlugin{fakePlugin{name: "forms", commands: []search.Action{
		{ID: "forms-new", Label: "New Form"},
		{ID: "forms-list", Label: "Forms", Icon: "📋"},
	}}}
	require.NoError(t, r.Register(withCmds))
	require.NoError(t, r.Register(&fakePlugin{name: "plain"}))

	assert.Empty(t, r.Commands())

	r.Mark("forms", true)
	r.Mark("plain", true)
	cmds := r.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, search.PluginIcon, cmds[0].Icon)
	assert.Equal(t, "📋", cmds[1].Icon)
}

func TestRegistry_SyncLoadsPersistedState(t *testing.T) {
	r := NewRegistry(Context{})
	require.NoError(t, r.Register(&fakePlugin{name: "alpha"}))
	require.NoError(t, r.Register(&fakePlugin{name: "beta"}))

	cat := &fakeCatalog{active: map[string]bool{"beta": true}}
	require.NoError(t, r.Sync(context.Background(), cat))

	assert.False(t, r.IsActive("alpha"))
	assert.True(t, r.IsActive("beta"))
	require.Len(t, cat.seen, 2)
	assert.Equal(t, models.DefaultPluginVersion, cat.seen[0].Version)
	assert.Equal(t, "Fake alpha", cat.seen[0].DisplayName)
	assert.Nil(t, cat.seen[0].Description)
}

func TestModel_Sidebar(t *testing.T) {
	p := &sidebarPlugin{fakePlugin{name: "alpha"}}
	m := Model(p)
	require.NotNil(t, m.SidebarTitle)
	assert.Equal(t, "Alpha", *m.SidebarTitle)
	assert.Nil(t, m.SidebarIcon)
}

type sidebarPlugin struct{ fakePlugin }

func (p *sidebarPlugin) Sidebar() Sidebar { return Sidebar{Title: "Alpha", Link: "/alpha"} }
