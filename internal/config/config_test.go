package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/dankamongmen/growlight/internal/config"
)

func Test(t *testing.T) { TestingT(t) }

type configSuite struct{}

var _ = Suite(&configSuite{})

const yamlFixture = `
target_root_prefix: /target
ignore_globs:
  - "loop*"
  - "ram[0-9]*"
retry:
  attempts: 5
  delay_seconds: 1
`

func (s *configSuite) TestLoadDefaultsAndOverrides(c *C) {
	dir := c.MkDir()
	yamlPath := filepath.Join(dir, "growlight.yaml")
	c.Assert(os.WriteFile(yamlPath, []byte(yamlFixture), 0644), IsNil)

	cfg, err := config.Load(yamlPath)
	c.Assert(err, IsNil)
	c.Check(cfg.TargetRootPrefix, Equals, "/target")
	c.Check(cfg.Retry.Attempts, Equals, 5)
	c.Check(cfg.Ignored("loop0"), Equals, true)
	c.Check(cfg.Ignored("ram3"), Equals, true)
	c.Check(cfg.Ignored("sda"), Equals, false)
}

func (s *configSuite) TestLoadAppliesDefaultsWhenFieldsAbsent(c *C) {
	dir := c.MkDir()
	yamlPath := filepath.Join(dir, "growlight.yaml")
	c.Assert(os.WriteFile(yamlPath, []byte("target_root_prefix: /mnt\n"), 0644), IsNil)

	cfg, err := config.Load(yamlPath)
	c.Assert(err, IsNil)
	c.Check(cfg.Retry.Attempts, Equals, 3)
	c.Check(cfg.Retry.DelaySeconds, Equals, 3)
}

func (s *configSuite) TestApplyOverridesMissingFileIsNoop(c *C) {
	cfg := &config.Config{TargetRootPrefix: "/target"}
	err := config.ApplyOverrides(cfg, filepath.Join(c.MkDir(), "nonexistent.ini"))
	c.Assert(err, IsNil)
	c.Check(cfg.TargetRootPrefix, Equals, "/target")
}

func (s *configSuite) TestApplyOverridesFromIni(c *C) {
	dir := c.MkDir()
	iniPath := filepath.Join(dir, "growlight.ini")
	ini := "[growlight]\ntarget_root_prefix = /override\nretry_attempts = 7\n"
	c.Assert(os.WriteFile(iniPath, []byte(ini), 0644), IsNil)

	cfg := &config.Config{TargetRootPrefix: "/target", Retry: config.RetryConfig{Attempts: 3}}
	c.Assert(config.ApplyOverrides(cfg, iniPath), IsNil)
	c.Check(cfg.TargetRootPrefix, Equals, "/override")
	c.Check(cfg.Retry.Attempts, Equals, 7)
}
