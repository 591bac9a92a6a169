// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/loggo/v2"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
	"gopkg.in/yaml.v3"

	"github.com/juju/storefront/cmd"
	"github.com/juju/storefront/controller"
	"github.com/juju/storefront/internal/mail"
)

const secret = "0123456789abcdef0123456789abcdef"

type mainSuite struct {
	testing.IsolationSuite

	ctx *cmd.Context
}

var _ = gc.Suite(&mainSuite{})

func (s *mainSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.ctx = &cmd.Context{
		Dir: c.MkDir(),
		Env: []string{
			"STOREFRONT_JWT_SECRET=" + secret,
			"STOREFRONT_LOGGING_CONFIG=<root>=WARNING",
		},
		Stdin:  &bytes.Buffer{},
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
	}
}

func (s *mainSuite) run(c *gc.C, args ...string) (int, string, string) {
	s.ctx.Stdout.(*bytes.Buffer).Reset()
	s.ctx.Stderr.(*bytes.Buffer).Reset()
	code := cmd.Main(NewStorefrontCommand(), s.ctx, args)
	return code, s.ctx.Stdout.(*bytes.Buffer).String(), s.ctx.Stderr.(*bytes.Buffer).String()
}

func (s *mainSuite) TestNoCommand(c *gc.C) {
	code, _, stderr := s.run(c)
	c.Check(code, gc.Equals, 2)
	c.Check(stderr, gc.Equals, "ERROR no command specified\n")
}

func (s *mainSuite) TestHelpListsCommands(c *gc.C) {
	code, stdout, _ := s.run(c, "--help")
	c.Check(code, gc.Equals, 0)
	c.Check(stdout, gc.Matches, `(?s).*\n    config - print the effective configuration\n.*`)
	c.Check(stdout, gc.Matches, `(?s).*\n    seed   - add an administrator and sample products\n.*`)
	c.Check(stdout, gc.Matches, `(?s).*\n    serve  - serve the storefront\b.*`)
}

func (s *mainSuite) TestSeed(c *gc.C) {
	code, stdout, stderr := s.run(c, "seed", "--products", "3", "--format", "json")
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	var result seedResult
	err := json.Unmarshal([]byte(stdout), &result)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Admin, jc.DeepEquals, seededRecord{
		Name:    "admin@example.com",
		Detail:  "admin",
		Created: true,
	})
	c.Assert(result.Products, gc.HasLen, 3)
	for i, record := range result.Products {
		c.Check(record.Created, jc.IsTrue)
		c.Check(record.Name, gc.Equals, []string{"SEED-0001", "SEED-0002", "SEED-0003"}[i])
	}
	c.Check(filepath.Join(s.ctx.Dir, controller.DefaultDatabasePath), jc.IsNonEmptyFile)
}

func (s *mainSuite) TestSeedTwiceLeavesExistingRecords(c *gc.C) {
	code, _, stderr := s.run(c, "seed", "--products", "2")
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	code, stdout, stderr := s.run(c, "seed", "--products", "3", "--format", "yaml")
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	var result seedResult
	err := yaml.Unmarshal([]byte(stdout), &result)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(result.Admin.Created, jc.IsFalse)
	c.Assert(result.Products, gc.HasLen, 3)
	c.Check(result.Products[0].Created, jc.IsFalse)
	c.Check(result.Products[1].Created, jc.IsFalse)
	c.Check(result.Products[2].Created, jc.IsTrue)
}

func (s *mainSuite) TestSeedTabular(c *gc.C) {
	code, stdout, stderr := s.run(c, "seed", "--products", "1", "--admin-email", "ops@example.com")
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	c.Assert(lines, gc.HasLen, 3)
	c.Check(strings.Fields(lines[0]), jc.DeepEquals, []string{"NAME", "DETAIL", "STATUS"})
	c.Check(lines[1], gc.Matches, `ops@example.com\s+admin\s+created`)
	c.Check(lines[2], gc.Matches, `SEED-0001\s+.*\$4\.99\s+created`)
}

func (s *mainSuite) TestSeedNegativeProducts(c *gc.C) {
	code, _, stderr := s.run(c, "seed", "--products=-1")
	c.Check(code, gc.Equals, 2)
	c.Check(stderr, gc.Equals, "ERROR --products -1 is negative\n")
}

func (s *mainSuite) TestSeedMissingSecret(c *gc.C) {
	s.ctx.Env = nil
	code, _, stderr := s.run(c, "seed")
	c.Check(code, gc.Equals, 1)
	c.Check(stderr, jc.Contains, "jwt-secret: expected string, got nothing")
}

func (s *mainSuite) TestConfigRedactsSecrets(c *gc.C) {
	s.ctx.Env = append(s.ctx.Env, "STOREFRONT_SMTP_PORT=2525")

	code, stdout, stderr := s.run(c, "config", "--format", "json")
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	var attrs map[string]string
	err := json.Unmarshal([]byte(stdout), &attrs)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(attrs["jwt-secret"], gc.Equals, "(redacted)")
	c.Check(attrs["smtp-port"], gc.Equals, "2525")
	c.Check(attrs["logging-config"], gc.Equals, "<root>=WARNING")
}

func (s *mainSuite) TestConfigShowSecrets(c *gc.C) {
	code, stdout, stderr := s.run(c, "config", "--show-secrets", "--format", "json")
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	var attrs map[string]string
	err := json.Unmarshal([]byte(stdout), &attrs)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(attrs["jwt-secret"], gc.Equals, secret)
}

func (s *mainSuite) TestConfigFile(c *gc.C) {
	path := filepath.Join(s.ctx.Dir, "storefront.yaml")
	err := os.WriteFile(path, []byte("listen-address: 127.0.0.1:9000\nsmtp-host: mail.example.com\n"), 0600)
	c.Assert(err, jc.ErrorIsNil)

	code, stdout, stderr := s.run(c, "config", "--config", "storefront.yaml", "--format", "json")
	c.Assert(code, gc.Equals, 0, gc.Commentf("stderr: %s", stderr))

	var attrs map[string]string
	err = json.Unmarshal([]byte(stdout), &attrs)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(attrs["listen-address"], gc.Equals, "127.0.0.1:9000")
	c.Check(attrs["smtp-host"], gc.Equals, "mail.example.com")
}

func (s *mainSuite) TestConfigMissingFile(c *gc.C) {
	code, _, stderr := s.run(c, "config", "--config", "missing.yaml")
	c.Check(code, gc.Equals, 1)
	c.Check(stderr, jc.Contains, "reading config")
}

func (s *mainSuite) TestServeBadListenAddress(c *gc.C) {
	code, _, stderr := s.run(c, "serve", "--listen", "nonsense")
	c.Check(code, gc.Equals, 1)
	c.Check(stderr, jc.Contains, `listen-address "nonsense" not valid`)
}

func (s *mainSuite) TestNewMailerWithoutHostLogs(c *gc.C) {
	cfg := s.config(c, nil)
	mailer, err := newMailer(cfg)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(mailer, gc.Equals, mail.Mailer(mail.LogMailer{}))
}

func (s *mainSuite) TestNewMailerWithHost(c *gc.C) {
	cfg := s.config(c, map[string]interface{}{
		controller.SMTPHost: "mail.example.com",
	})
	mailer, err := newMailer(cfg)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(mailer, gc.FitsTypeOf, &mail.SMTPMailer{})
}

func (s *mainSuite) TestSetupLoggingToFile(c *gc.C) {
	cfg := s.config(c, map[string]interface{}{
		controller.LogFile:       "storefront.log",
		controller.LoggingConfig: "<root>=DEBUG",
	})
	restore, err := setupLogging(s.ctx, cfg)
	c.Assert(err, jc.ErrorIsNil)
	loggo.GetLogger("storefront.test").Infof("written to the log file")
	restore()

	data, err := os.ReadFile(filepath.Join(s.ctx.Dir, "storefront.log"))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(data), jc.Contains, "written to the log file")
	c.Check(s.ctx.Stderr.(*bytes.Buffer).String(), gc.Equals, "")
}

func (s *mainSuite) TestSetupLoggingToStderr(c *gc.C) {
	cfg := s.config(c, nil)
	restore, err := setupLogging(s.ctx, cfg)
	c.Assert(err, jc.ErrorIsNil)
	loggo.GetLogger("storefront.test").Warningf("written to stderr")
	restore()

	c.Check(s.ctx.Stderr.(*bytes.Buffer).String(), jc.Contains, "written to stderr")
}

func (s *mainSuite) TestSetupLoggingBadConfig(c *gc.C) {
	cfg := s.config(c, nil)
	cfg.LoggingConfig = "<root>=LOUD"
	_, err := setupLogging(s.ctx, cfg)
	c.Check(err, gc.ErrorMatches, "configuring loggers: .*")
}

func (s *mainSuite) config(c *gc.C, attrs map[string]interface{}) controller.Config {
	all := map[string]interface{}{controller.JWTSecret: secret}
	for k, v := range attrs {
		all[k] = v
	}
	cfg, err := controller.NewConfig(all)
	c.Assert(err, jc.ErrorIsNil)
	return cfg
}
