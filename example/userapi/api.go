// Package userapi is a small user directory served through every transport
// in this module. It is both a usage example and the service run by
// cmd/userapi.
package userapi

import (
	"github.com/unruly-software/api"
	"github.com/unruly-software/api/schema"
)

// Meta routes an operation over HTTP and NATS.
type Meta struct {
	Method  string
	Path    string
	Subject string
}

func (m Meta) HTTPRoute() (string, string) { return m.Method, m.Path }

func (m Meta) NATSSubject() string { return m.Subject }

type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type GetUserRequest struct {
	UserID int `json:"userId"`
}

type CreateUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

var (
	GetUser    = api.NewOp[GetUserRequest, *User]("getUser")
	CreateUser = api.NewOp[CreateUserRequest, User]("createUser")
	ListUsers  = api.NewOp[api.Unit, []User]("listUsers")
)

const userSchema = `{
	"type": "object",
	"properties": {
		"id": {"type": "integer"},
		"name": {"type": "string"},
		"email": {"type": "string", "format": "email"}
	},
	"required": ["id", "name", "email"]
}`

var catalog = api.NewCatalog(map[string]api.Definition[Meta]{
	GetUser.Name: {
		Request: schema.MustJSON("getUser.request", `{
			"type": "object",
			"properties": {"userId": {"type": "integer"}},
			"required": ["userId"]
		}`),
		Response: schema.MustJSON("getUser.response", `{"oneOf": [`+userSchema+`, {"type": "null"}]}`),
		Metadata: Meta{Method: "POST", Path: "/user/getUser", Subject: "user.getUser"},
	},
	CreateUser.Name: {
		Request: schema.MustJSON("createUser.request", `{
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"email": {"type": "string", "format": "email"}
			},
			"required": ["name", "email"]
		}`),
		Response: schema.MustJSON("createUser.response", userSchema),
		Metadata: Meta{Method: "POST", Path: "/user/createUser", Subject: "user.createUser"},
	},
	ListUsers.Name: {
		Response: schema.MustJSON("listUsers.response", `{"type": "array", "items": `+userSchema+`}`),
		Metadata: Meta{Method: "GET", Path: "/user/list", Subject: "user.list"},
	},
})

// Catalog is the user directory's operation catalog.
func Catalog() *api.Catalog[Meta] { return catalog }
