package navigation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sigreg/internal/navigation"
	"sigreg/internal/registry"
	"sigreg/internal/transport"
)

type EngineSuite struct {
	suite.Suite
	ctx    context.Context
	store  *registry.InMemoryStore
	engine *navigation.Engine

	adminID  uuid.UUID // root group with a legal entity and employees
	northID  uuid.UUID // child of admin
	ivanovID uuid.UUID // person in admin
	legalID  uuid.UUID // org entity of admin
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = registry.NewInMemoryStore()
	s.engine = navigation.New(s.store, navigation.WithClock(func() time.Time {
		return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	}))

	var err error
	s.adminID, err = s.store.UpsertGroup(s.ctx, "Administration", nil)
	s.Require().NoError(err)
	s.northID, err = s.store.UpsertGroup(s.ctx, "North Branch", &s.adminID)
	s.Require().NoError(err)
	s.legalID, err = s.store.EnsureOrgEntity(s.ctx, s.adminID, "Administration LLC")
	s.Require().NoError(err)
	s.ivanovID, err = s.store.CreateEntity(s.ctx, "Ivanov", registry.KindPerson, &s.adminID)
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertSignature(s.ctx, s.ivanovID,
		time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), nil))
}

// labels flattens an inline keyboard for assertions.
func labels(screen transport.Screen) []string {
	var out []string
	for _, row := range screen.Buttons {
		for _, b := range row {
			out = append(out, b.Label)
		}
	}
	return out
}

func (s *EngineSuite) handle(st *navigation.State, action string) navigation.Result {
	cmd, ok := navigation.Decode(action)
	s.Require().True(ok, "action %q must decode", action)
	res, err := s.engine.Handle(s.ctx, st, cmd)
	s.Require().NoError(err)
	return res
}

func (s *EngineSuite) TestCodecRoundtrip() {
	payload := navigation.Encode(navigation.ModeUpdate, navigation.ActionSelect, s.ivanovID.String())
	cmd, ok := navigation.Decode(payload)
	s.Require().True(ok)
	s.Equal(navigation.ModeUpdate, cmd.Mode)
	s.Equal(navigation.ActionSelect, cmd.Action)
	s.Equal(s.ivanovID.String(), cmd.Payload)

	for _, bad := range []string{"", "tree", "tree|update|select", "tree|what|select|x", "tree|update|dance|x", "menu|a|b|c"} {
		_, ok := navigation.Decode(bad)
		s.False(ok, "payload %q must not decode", bad)
	}
}

func (s *EngineSuite) TestBrowseRootListsTopLevelGroups() {
	var st navigation.State
	screen, err := s.engine.Start(s.ctx, &st, navigation.ModeBrowse)
	s.Require().NoError(err)

	s.Equal([]string{"Administration", "Close"}, labels(screen))
	s.Empty(st.Path)
}

func (s *EngineSuite) TestBrowseEnterAndSubViews() {
	var st navigation.State
	_, err := s.engine.Start(s.ctx, &st, navigation.ModeBrowse)
	s.Require().NoError(err)

	res := s.handle(&st, navigation.Encode(navigation.ModeBrowse, navigation.ActionEnter, s.adminID.String()))
	s.Require().NotNil(res.Screen)
	s.Equal([]string{"North Branch", "Legal signature", "Employees", "Up", "Close"}, labels(*res.Screen))
	s.Contains(res.Screen.Text, "Administration")

	s.Run("employees view lists persons with status", func() {
		res := s.handle(&st, navigation.Encode(navigation.ModeBrowse, navigation.ActionShow, "employees"))
		s.Require().NotNil(res.Screen)
		s.Contains(res.Screen.Text, "[person] Ivanov")
		s.Contains(res.Screen.Text, "expired")
		s.Equal([]string{"Back"}, labels(*res.Screen))
	})

	s.Run("legal view shows the org status line", func() {
		res := s.handle(&st, navigation.Encode(navigation.ModeBrowse, navigation.ActionShow, "legal"))
		s.Require().NotNil(res.Screen)
		s.Contains(res.Screen.Text, "[org] Administration LLC")
		s.Contains(res.Screen.Text, "no signature yet")
	})

	s.Run("up pops back to root", func() {
		res := s.handle(&st, navigation.Encode(navigation.ModeBrowse, navigation.ActionUp, ""))
		s.Require().NotNil(res.Screen)
		s.Empty(st.Path)
	})

	s.Run("up at root is a no-op re-render", func() {
		res := s.handle(&st, navigation.Encode(navigation.ModeBrowse, navigation.ActionUp, ""))
		s.Require().NotNil(res.Screen)
		s.Empty(st.Path)
	})
}

func (s *EngineSuite) TestPickerModesOfferMatchingEntities() {
	// enterAdmin starts a fresh picker session and steps into Administration,
	// returning the labels of the resulting screen.
	enterAdmin := func(mode navigation.Mode) ([]string, navigation.State) {
		var st navigation.State
		_, err := s.engine.Start(s.ctx, &st, mode)
		s.Require().NoError(err)
		res := s.handle(&st, navigation.Encode(mode, navigation.ActionEnter, s.adminID.String()))
		s.Require().NotNil(res.Screen)
		return labels(*res.Screen), st
	}

	s.Run("add-org offers only the legal entity", func() {
		got, _ := enterAdmin(navigation.ModeAddOrg)
		s.Contains(got, "[org] Administration LLC")
		s.NotContains(got, "[person] Ivanov")
	})

	s.Run("add-person offers only persons", func() {
		got, _ := enterAdmin(navigation.ModeAddPerson)
		s.Contains(got, "[person] Ivanov")
		s.NotContains(got, "[org] Administration LLC")
	})

	s.Run("update offers both kinds", func() {
		got, _ := enterAdmin(navigation.ModeUpdate)
		s.Contains(got, "[org] Administration LLC")
		s.Contains(got, "[person] Ivanov")
	})

	s.Run("child groups stay enterable", func() {
		got, _ := enterAdmin(navigation.ModeDeleteSignature)
		s.Contains(got, "North Branch")
	})
}

func (s *EngineSuite) TestSelectHandsOffEntity() {
	var st navigation.State
	_, err := s.engine.Start(s.ctx, &st, navigation.ModeUpdate)
	s.Require().NoError(err)
	s.handle(&st, navigation.Encode(navigation.ModeUpdate, navigation.ActionEnter, s.adminID.String()))

	res := s.handle(&st, navigation.Encode(navigation.ModeUpdate, navigation.ActionSelect, s.ivanovID.String()))
	s.Require().NotNil(res.Selection)
	s.Equal(navigation.ModeUpdate, res.Selection.Mode)
	s.Equal(s.ivanovID, res.Selection.EntityID)
}

func (s *EngineSuite) TestRegisterPersonSelectsCurrentGroup() {
	var st navigation.State
	_, err := s.engine.Start(s.ctx, &st, navigation.ModeRegisterPerson)
	s.Require().NoError(err)

	res := s.handle(&st, navigation.Encode(navigation.ModeRegisterPerson, navigation.ActionEnter, s.adminID.String()))
	s.Contains(labels(*res.Screen), "Add employee here")

	res = s.handle(&st, navigation.Encode(navigation.ModeRegisterPerson, navigation.ActionSelect, ""))
	s.Require().NotNil(res.Selection)
	s.Equal(s.adminID, res.Selection.GroupID)
}

func (s *EngineSuite) TestStaleModeRestartsAtRoot() {
	var st navigation.State
	_, err := s.engine.Start(s.ctx, &st, navigation.ModeBrowse)
	s.Require().NoError(err)
	s.handle(&st, navigation.Encode(navigation.ModeBrowse, navigation.ActionEnter, s.adminID.String()))
	s.Require().Len(st.Path, 1)

	// A button from an older update screen arrives into a browse session.
	res := s.handle(&st, navigation.Encode(navigation.ModeUpdate, navigation.ActionUp, ""))
	s.Require().NotNil(res.Screen)
	s.Equal(navigation.ModeUpdate, st.Mode)
	s.Empty(st.Path)
}

func (s *EngineSuite) TestExitDiscardsState() {
	var st navigation.State
	_, err := s.engine.Start(s.ctx, &st, navigation.ModeBrowse)
	s.Require().NoError(err)
	s.handle(&st, navigation.Encode(navigation.ModeBrowse, navigation.ActionEnter, s.adminID.String()))

	res := s.handle(&st, navigation.Encode(navigation.ModeBrowse, navigation.ActionExit, ""))
	s.True(res.Exited)
	s.Empty(st.Path)
	s.Empty(st.Mode)
}
