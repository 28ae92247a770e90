// Package httpapi exposes the catalog, the lending operations and the account endpoints over HTTP.
//
// Every response uses the JSON envelope {status, message, data?, errors?, token?, token_type?}.
// All book routes and the logout route require a bearer token issued by the login route.
package httpapi
