package config

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestParseRemindTime() {
	s.Run("valid time", func() {
		at, err := ParseRemindTime("09:30")
		s.NoError(err)
		s.Equal(9, at.Hour)
		s.Equal(30, at.Minute)
	})

	s.Run("missing minute", func() {
		_, err := ParseRemindTime("9")
		s.Error(err)
	})

	s.Run("hour out of range", func() {
		_, err := ParseRemindTime("24:00")
		s.Error(err)
	})

	s.Run("minute out of range", func() {
		_, err := ParseRemindTime("12:60")
		s.Error(err)
	})
}

func (s *ConfigSuite) TestFromEnvDefaults() {
	s.T().Setenv("SIGREG_ADDR", "")
	s.T().Setenv("DATABASE_URL", "")
	s.T().Setenv("ALLOWED_CHATS", "")
	s.T().Setenv("REMIND_AT", "")
	s.T().Setenv("REMIND_DAYS", "")

	cfg := FromEnv()
	s.Equal(":8080", cfg.Addr)
	s.Empty(cfg.AllowedChats)
	s.Equal(RemindTime{Hour: 9}, cfg.RemindAt)
	s.Equal(DefaultRemindDays, cfg.RemindDays)
}

func (s *ConfigSuite) TestFromEnvParsing() {
	s.T().Setenv("ALLOWED_CHATS", "100, 200,junk,300")
	s.T().Setenv("REMIND_AT", "07:45")
	s.T().Setenv("REMIND_DAYS", "10,5,0")

	cfg := FromEnv()
	s.Equal([]int64{100, 200, 300}, cfg.AllowedChats)
	s.Equal(RemindTime{Hour: 7, Minute: 45}, cfg.RemindAt)
	s.Equal([]int{10, 5, 0}, cfg.RemindDays)
}
