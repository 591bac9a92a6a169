// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

/*
Package core holds the concepts and pure logic of the storefront: the
identifiers and records of products, carts, tickets and users, and the
database abstractions the domain packages are written against.

When adding to core:

  - it's fine to import from any subpackage of "github.com/juju/storefront/core"
  - it's not fine to import from the domain, apiserver or internal packages;
    core sits below all of them.
  - if it's concerned with HTTP transport or SQL statements it belongs in
    apiserver or a domain state package, not here.
*/
package core
