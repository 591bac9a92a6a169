// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/juju/errors"

	"github.com/juju/storefront/apiserver/authentication"
	apiservererrors "github.com/juju/storefront/apiserver/errors"
)

const errBadRequest = apiservererrors.ErrBadRequest

// maxBodySize bounds every JSON request body.
const maxBodySize = 1 << 20

type handlerFunc func(http.ResponseWriter, *http.Request) error

type identityHandlerFunc func(http.ResponseWriter, *http.Request, authentication.Identity) error

// handle adapts fn to an http.Handler, reporting any error it returns as a
// JSON error body.
func (s *Server) handle(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := fn(w, req); err != nil {
			if sendErr := sendJSONError(w, req, err); sendErr != nil {
				logger.Errorf("cannot send error to %s: %v", req.RemoteAddr, sendErr)
			}
		}
	})
}

// authenticated is like handle, but fn is only called for requests with a
// valid access token.
func (s *Server) authenticated(fn identityHandlerFunc) http.Handler {
	return s.handle(func(w http.ResponseWriter, req *http.Request) error {
		id, err := s.authenticate(req)
		if err != nil {
			return errors.Trace(err)
		}
		return fn(w, req, id)
	})
}

// admin is like authenticated, but fn is only called for admins.
func (s *Server) admin(fn identityHandlerFunc) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, req *http.Request, id authentication.Identity) error {
		if err := authentication.AuthorizeAdmin(id); err != nil {
			return errors.Trace(err)
		}
		return fn(w, req, id)
	})
}

func (s *Server) authenticate(req *http.Request) (authentication.Identity, error) {
	id, err := s.authenticator.Authenticate(req.Context(), authentication.TokenFromRequest(req))
	if err != nil {
		return authentication.Identity{}, errors.Trace(err)
	}
	return id, nil
}

// optionalIdentity returns the identity of the request if it carries a
// token. A request without a token is anonymous, but a bad token is still
// rejected.
func (s *Server) optionalIdentity(req *http.Request) (authentication.Identity, bool, error) {
	if authentication.TokenFromRequest(req) == "" {
		return authentication.Identity{}, false, nil
	}
	id, err := s.authenticate(req)
	if err != nil {
		return authentication.Identity{}, false, errors.Trace(err)
	}
	return id, true, nil
}

// sendStatusAndJSON sends an HTTP status code and a JSON-encoded response
// to a client.
func sendStatusAndJSON(w http.ResponseWriter, statusCode int, response interface{}) error {
	body, err := json.Marshal(response)
	if err != nil {
		return errors.Errorf("cannot marshal JSON result %#v: %v", response, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		return errors.Annotate(err, "cannot write response")
	}
	return nil
}

// sendJSONError sends a JSON-encoded error response.
func sendJSONError(w http.ResponseWriter, req *http.Request, err error) error {
	perr, status := apiservererrors.ServerErrorAndStatus(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("returning error from %s %s: %s", req.Method, req.URL.Path, errors.Details(err))
	} else {
		logger.Debugf("returning error from %s %s: %v", req.Method, req.URL.Path, err)
	}
	return errors.Trace(sendStatusAndJSON(w, status, perr))
}

// decodeJSON reads the JSON request body into v. An empty body is only
// accepted when allowEmpty is set, leaving v untouched.
func decodeJSON(req *http.Request, v interface{}, allowEmpty bool) error {
	decoder := json.NewDecoder(io.LimitReader(req.Body, maxBodySize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err == io.EOF {
		if allowEmpty {
			return nil
		}
		return errors.Annotate(errBadRequest, "empty request body")
	} else if err != nil {
		return errors.Annotatef(errBadRequest, "decoding request body: %v", err)
	}
	return nil
}

func pathParam(req *http.Request, name string) string {
	return mux.Vars(req)[name]
}
