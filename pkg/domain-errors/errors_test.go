package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorsSuite struct {
	suite.Suite
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsSuite))
}

func (s *ErrorsSuite) TestHasCode() {
	s.Run("direct code matches", func() {
		err := New(CodeConflict, "name taken")
		s.True(HasCode(err, CodeConflict))
		s.False(HasCode(err, CodeNotFound))
	})

	s.Run("wrapped cause code is still visible", func() {
		inner := New(CodeNotFound, "no such entity")
		outer := Wrap(inner, CodeInternal, "lookup failed")
		s.True(HasCode(outer, CodeInternal))
		s.True(HasCode(outer, CodeNotFound))
	})

	s.Run("fmt-wrapped domain errors keep their code", func() {
		err := fmt.Errorf("handle event: %w", New(CodeValidation, "bad date"))
		s.True(HasCode(err, CodeValidation))
	})

	s.Run("plain errors carry no code", func() {
		s.False(HasCode(errors.New("boom"), CodeInternal))
	})
}

func (s *ErrorsSuite) TestCodeOf() {
	s.Equal(CodeConflict, CodeOf(New(CodeConflict, "dup")))
	s.Equal(CodeInternal, CodeOf(errors.New("boom")))
}

func (s *ErrorsSuite) TestMessageOf() {
	s.Equal("name taken", MessageOf(New(CodeConflict, "name taken")))
	s.Equal("boom", MessageOf(errors.New("boom")))
}

func (s *ErrorsSuite) TestWrapNil() {
	s.Nil(Wrap(nil, CodeInternal, "ignored"))
}

func (s *ErrorsSuite) TestUnwrapChain() {
	cause := errors.New("socket closed")
	err := Wrap(cause, CodeInternal, "store unavailable")
	s.True(errors.Is(err, cause))
}
