package render_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sigreg/internal/registry"
	"sigreg/internal/render"
	dErrors "sigreg/pkg/domain-errors"
)

type RenderSuite struct {
	suite.Suite
}

func TestRenderSuite(t *testing.T) {
	suite.Run(t, new(RenderSuite))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strptr(s string) *string { return &s }

func (s *RenderSuite) TestParseDate() {
	s.Run("dotted and iso forms are equivalent", func() {
		a, err := render.ParseDate("31.12.2025")
		s.Require().NoError(err)
		b, err := render.ParseDate("2025-12-31")
		s.Require().NoError(err)
		s.True(a.Equal(b))
		s.True(a.Equal(date(2025, 12, 31)))
	})

	s.Run("surrounding whitespace is tolerated", func() {
		got, err := render.ParseDate("  01.02.2026 ")
		s.Require().NoError(err)
		s.True(got.Equal(date(2026, 2, 1)))
	})

	s.Run("impossible month is rejected", func() {
		_, err := render.ParseDate("31/13/2025")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("free text is rejected", func() {
		_, err := render.ParseDate("tomorrow")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RenderSuite) TestStatusLine() {
	today := date(2026, 1, 15)

	s.Run("future expiry carries no marker", func() {
		row := registry.EntityRow{Name: "Ivanov", Kind: registry.KindPerson, Expiry: ptr(date(2026, 2, 1))}
		s.Equal("[person] Ivanov — until 01.02.2026", render.StatusLine(row, today))
	})

	s.Run("past expiry is marked expired", func() {
		row := registry.EntityRow{Name: "Acme", Kind: registry.KindOrg, Expiry: ptr(date(2026, 1, 14))}
		s.Equal("[org] Acme — until 14.01.2026 — expired", render.StatusLine(row, today))
	})

	s.Run("expiry today is marked due", func() {
		row := registry.EntityRow{Name: "Ivanov", Kind: registry.KindPerson, Expiry: ptr(today)}
		s.Equal("[person] Ivanov — until 15.01.2026 — due today!", render.StatusLine(row, today))
	})

	s.Run("note lands on its own line", func() {
		row := registry.EntityRow{
			Name: "Ivanov", Kind: registry.KindPerson,
			Expiry: ptr(date(2026, 2, 1)), Note: strptr("usb token in the safe"),
		}
		s.Equal("[person] Ivanov — until 01.02.2026\nusb token in the safe", render.StatusLine(row, today))
	})

	s.Run("missing signature is stated", func() {
		row := registry.EntityRow{Name: "Ivanov", Kind: registry.KindPerson}
		s.Equal("[person] Ivanov — no signature yet", render.StatusLine(row, today))
	})
}

func (s *RenderSuite) TestDaysUntil() {
	today := date(2026, 1, 15)
	s.Equal(5, render.DaysUntil(date(2026, 1, 20), today))
	s.Equal(0, render.DaysUntil(today, today))
	s.Equal(-3, render.DaysUntil(date(2026, 1, 12), today))
}

func ptr(t time.Time) *time.Time { return &t }
