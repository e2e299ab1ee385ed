// Package api holds the operation catalog shared by callers and servers.
//
// A Catalog maps operation names to Definitions. Each Definition declares a
// request schema, a response schema and transport metadata of type M. Either
// schema may be nil, meaning the operation carries no payload in that
// direction. The client package executes operations against a Resolver; the
// server package implements them with routes and compiles a Dispatcher.
//
//	catalog := api.NewCatalog(map[string]api.Definition[Meta]{
//		"getUser": {
//			Request:  schema.MustJSON("getUser.request", `{"type":"object", ...}`),
//			Response: schema.MustJSON("getUser.response", `...`),
//			Metadata: Meta{Method: "POST", Path: "/user/getUser"},
//		},
//	})
package api
