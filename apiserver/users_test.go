// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver_test

import (
	"net/http"
	"strings"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/storefront/apiserver/params"
)

type usersSuite struct {
	baseSuite
}

var _ = gc.Suite(&usersSuite{})

var registerArgs = params.RegisterArgs{
	Email:     "jo@example.com",
	FirstName: "Jo",
	LastName:  "Shopper",
	Password:  "hunter22",
}

func (s *usersSuite) login(c *gc.C, email, password string) (*params.LoginResult, int) {
	rec := s.do(c, "POST", "/login", "", params.LoginArgs{Email: email, Password: password})
	if rec.Code != http.StatusOK {
		return nil, rec.Code
	}
	var result params.LoginResult
	decodeBody(c, rec, &result)
	return &result, rec.Code
}

func (s *usersSuite) TestRegisterVerifyLogin(c *gc.C) {
	rec := s.do(c, "POST", "/register", "", registerArgs)
	c.Assert(rec.Code, gc.Equals, http.StatusCreated, gc.Commentf("%s", rec.Body.String()))

	sent := s.mailer.Verifications()
	c.Assert(sent, gc.HasLen, 1)
	c.Check(sent[0].To, gc.Equals, "jo@example.com")
	c.Check(sent[0].Code, gc.Matches, "[0-9]{6}")
	c.Assert(strings.HasPrefix(sent[0].Link, "https://shop.example.com/verify/"), jc.IsTrue, gc.Commentf("%s", sent[0].Link))

	_, code := s.login(c, "jo@example.com", "hunter22")
	c.Check(code, gc.Equals, http.StatusUnauthorized)

	token := strings.TrimPrefix(sent[0].Link, "https://shop.example.com")
	rec = s.do(c, "GET", token, "", nil)
	c.Assert(rec.Code, gc.Equals, http.StatusOK, gc.Commentf("%s", rec.Body.String()))

	rec = s.do(c, "GET", token, "", nil)
	assertError(c, rec, http.StatusBadRequest, "invalid argument")

	result, code := s.login(c, "jo@example.com", "hunter22")
	c.Assert(code, gc.Equals, http.StatusOK)
	c.Check(result.Token, gc.Not(gc.Equals), "")
	c.Check(result.User.Email, gc.Equals, "jo@example.com")
	c.Check(result.User.Role, gc.Equals, "user")
	c.Check(result.User.Verified, jc.IsTrue)

	rec = s.do(c, "GET", "/current", result.Token, nil)
	c.Assert(rec.Code, gc.Equals, http.StatusOK)
	var current params.User
	decodeBody(c, rec, &current)
	c.Check(current, jc.DeepEquals, result.User)
}

func (s *usersSuite) TestVerifyWithCode(c *gc.C) {
	rec := s.do(c, "POST", "/register", "", registerArgs)
	c.Assert(rec.Code, gc.Equals, http.StatusCreated)
	code := s.mailer.Verifications()[0].Code

	rec = s.do(c, "POST", "/verify", "", params.VerifyArgs{Email: "jo@example.com", Code: "nope"})
	assertError(c, rec, http.StatusBadRequest, "invalid argument")

	rec = s.do(c, "POST", "/verify", "", params.VerifyArgs{Email: "jo@example.com", Code: code})
	c.Assert(rec.Code, gc.Equals, http.StatusOK, gc.Commentf("%s", rec.Body.String()))

	_, status := s.login(c, "jo@example.com", "hunter22")
	c.Check(status, gc.Equals, http.StatusOK)
}

func (s *usersSuite) TestVerifyLinkNotValid(c *gc.C) {
	rec := s.do(c, "GET", "/verify/garbage", "", nil)
	assertError(c, rec, http.StatusBadRequest, "invalid argument")

	// An access token is not a verification token.
	admin := s.adminToken(c)
	rec = s.do(c, "GET", "/verify/"+admin, "", nil)
	assertError(c, rec, http.StatusBadRequest, "invalid argument")
}

func (s *usersSuite) TestRegisterDuplicate(c *gc.C) {
	rec := s.do(c, "POST", "/register", "", registerArgs)
	c.Assert(rec.Code, gc.Equals, http.StatusCreated)

	rec = s.do(c, "POST", "/register", "", registerArgs)
	assertError(c, rec, http.StatusConflict, "conflict")
}

func (s *usersSuite) TestRegisterNotValid(c *gc.C) {
	args := registerArgs
	args.Email = "not-an-email"
	rec := s.do(c, "POST", "/register", "", args)
	assertError(c, rec, http.StatusBadRequest, "invalid argument")

	args = registerArgs
	args.Password = ""
	rec = s.do(c, "POST", "/register", "", args)
	assertError(c, rec, http.StatusBadRequest, "invalid argument")

	c.Check(s.mailer.Verifications(), gc.HasLen, 0)
}

func (s *usersSuite) TestRegisterMailFailure(c *gc.C) {
	s.mailer.Err = errors.New("smtp down")

	rec := s.do(c, "POST", "/register", "", registerArgs)
	c.Assert(rec.Code, gc.Equals, http.StatusCreated)

	_, err := s.factory.Users().GetUserByEmail(s.ctx(), "jo@example.com")
	c.Check(err, jc.ErrorIsNil)
}

func (s *usersSuite) TestLoginBadCredentials(c *gc.C) {
	s.SeedVerifiedUser(c, s.factory, "jo@example.com", "hunter22")

	_, code := s.login(c, "jo@example.com", "wrong")
	c.Check(code, gc.Equals, http.StatusUnauthorized)

	_, code = s.login(c, "nobody@example.com", "hunter22")
	c.Check(code, gc.Equals, http.StatusUnauthorized)

	rec := s.do(c, "POST", "/login", "", params.LoginArgs{Email: "jo@example.com"})
	assertError(c, rec, http.StatusBadRequest, "invalid argument")
}

func (s *usersSuite) TestLogout(c *gc.C) {
	rec := s.do(c, "POST", "/logout", "", nil)
	c.Assert(rec.Code, gc.Equals, http.StatusOK)
	var result params.StatusResult
	decodeBody(c, rec, &result)
	c.Check(result.Status, gc.Equals, "success")
}

func (s *usersSuite) TestCurrentRequiresToken(c *gc.C) {
	rec := s.do(c, "GET", "/current", "", nil)
	assertError(c, rec, http.StatusUnauthorized, "unauthorized")
}

func (s *usersSuite) TestCurrentUnverified(c *gc.C) {
	uuid, _, err := s.factory.Users().Register(s.ctx(), registerArgsFor("sam@example.com"))
	c.Assert(err, jc.ErrorIsNil)
	token := s.accessToken(c, uuid, "sam@example.com", "user")

	rec := s.do(c, "GET", "/current", token, nil)
	assertError(c, rec, http.StatusForbidden, "forbidden")
}

func (s *usersSuite) TestPasswordReset(c *gc.C) {
	s.SeedVerifiedUser(c, s.factory, "jo@example.com", "hunter22")

	rec := s.do(c, "POST", "/forgot-password", "", params.ForgotPasswordArgs{Email: "nobody@example.com"})
	assertError(c, rec, http.StatusNotFound, "not found")

	rec = s.do(c, "POST", "/forgot-password", "", params.ForgotPasswordArgs{Email: "jo@example.com"})
	c.Assert(rec.Code, gc.Equals, http.StatusOK, gc.Commentf("%s", rec.Body.String()))

	sent := s.mailer.Resets()
	c.Assert(sent, gc.HasLen, 1)
	c.Check(sent[0].To, gc.Equals, "jo@example.com")
	path := strings.TrimPrefix(sent[0].Link, "https://shop.example.com")
	c.Assert(strings.HasPrefix(path, "/reset-password/"), jc.IsTrue)

	rec = s.do(c, "POST", "/reset-password/garbage", "", params.ResetPasswordArgs{Password: "sesame99"})
	assertError(c, rec, http.StatusBadRequest, "invalid argument")

	rec = s.do(c, "POST", path, "", params.ResetPasswordArgs{Password: "sesame99"})
	c.Assert(rec.Code, gc.Equals, http.StatusOK, gc.Commentf("%s", rec.Body.String()))

	_, code := s.login(c, "jo@example.com", "hunter22")
	c.Check(code, gc.Equals, http.StatusUnauthorized)
	_, code = s.login(c, "jo@example.com", "sesame99")
	c.Check(code, gc.Equals, http.StatusOK)

	// The link sets the password once.
	rec = s.do(c, "POST", path, "", params.ResetPasswordArgs{Password: "opensesame"})
	assertError(c, rec, http.StatusBadRequest, "invalid argument")
	_, code = s.login(c, "jo@example.com", "sesame99")
	c.Check(code, gc.Equals, http.StatusOK)
}

func (s *usersSuite) TestResetLinkStaleAfterPasswordChange(c *gc.C) {
	s.SeedVerifiedUser(c, s.factory, "jo@example.com", "hunter22")

	for i := 0; i < 2; i++ {
		rec := s.do(c, "POST", "/forgot-password", "", params.ForgotPasswordArgs{Email: "jo@example.com"})
		c.Assert(rec.Code, gc.Equals, http.StatusOK, gc.Commentf("%s", rec.Body.String()))
	}
	sent := s.mailer.Resets()
	c.Assert(sent, gc.HasLen, 2)
	first := strings.TrimPrefix(sent[0].Link, "https://shop.example.com")
	second := strings.TrimPrefix(sent[1].Link, "https://shop.example.com")

	rec := s.do(c, "POST", second, "", params.ResetPasswordArgs{Password: "sesame99"})
	c.Assert(rec.Code, gc.Equals, http.StatusOK, gc.Commentf("%s", rec.Body.String()))

	// Every outstanding link dies with the old password.
	rec = s.do(c, "POST", first, "", params.ResetPasswordArgs{Password: "opensesame"})
	assertError(c, rec, http.StatusBadRequest, "invalid argument")

	_, code := s.login(c, "jo@example.com", "sesame99")
	c.Check(code, gc.Equals, http.StatusOK)
}

func (s *usersSuite) TestResetLinkExpires(c *gc.C) {
	s.SeedVerifiedUser(c, s.factory, "jo@example.com", "hunter22")
	token, err := s.tokens.IssueReset("jo@example.com", "", -1)
	c.Assert(err, jc.ErrorIsNil)

	rec := s.do(c, "POST", "/reset-password/"+token, "", params.ResetPasswordArgs{Password: "sesame99"})
	assertError(c, rec, http.StatusBadRequest, "invalid argument")
}
