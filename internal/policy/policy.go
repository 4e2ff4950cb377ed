// Package policy holds the declarative access table that decides which
// operations on which resources require an authenticated admin.
package policy

import (
	"fmt"
	"sort"

	"github.com/kindfund/kindfund/internal/model"
)

// Access is the requirement for one resource operation.
type Access int

const (
	// NotExposed operations are not routed at all.
	NotExposed Access = iota
	// Open operations are served to anyone.
	Open
	// AdminOnly operations pass through the request gate.
	AdminOnly
)

func (a Access) String() string {
	switch a {
	case Open:
		return "open"
	case AdminOnly:
		return "admin"
	default:
		return "n/a"
	}
}

// Operation is a CRUD verb on a resource.
type Operation string

const (
	List   Operation = "list"
	Get    Operation = "get"
	Create Operation = "create"
	Update Operation = "update"
	Delete Operation = "delete"
)

// Operations lists every operation in routing order.
var Operations = []Operation{List, Get, Create, Update, Delete}

// ResourceAdmins is the resource name for admin identities.
const ResourceAdmins = "admins"

// Rules maps an operation to its access requirement. Missing entries are
// NotExposed.
type Rules map[Operation]Access

// Table maps resource names to their rules.
type Table map[string]Rules

// Lookup returns the access requirement for op on resource. Unknown
// resources and operations are NotExposed.
func (t Table) Lookup(resource string, op Operation) Access {
	return t[resource][op]
}

// Resources returns the resource names in sorted order.
func (t Table) Resources() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports entries with an access value outside the known set.
func (t Table) Validate() error {
	for res, rules := range t {
		for op, a := range rules {
			if a != NotExposed && a != Open && a != AdminOnly {
				return fmt.Errorf("policy %s/%s: unknown access %d", res, op, int(a))
			}
		}
	}
	return nil
}

func publishedContent() Rules {
	return Rules{List: Open, Get: Open, Create: AdminOnly, Update: AdminOnly, Delete: AdminOnly}
}

func publicSubmission() Rules {
	return Rules{List: AdminOnly, Get: AdminOnly, Create: Open, Update: AdminOnly, Delete: AdminOnly}
}

// Default returns the access table served by kindfund. Causes, events and
// blogs are publicly readable. Donations, volunteer sign-ups and contact
// messages are publicly submittable. Everything else requires an admin.
func Default() Table {
	return Table{
		model.CollectionCauses:     publishedContent(),
		model.CollectionEvents:     publishedContent(),
		model.CollectionBlogs:      publishedContent(),
		model.CollectionDonations:  publicSubmission(),
		model.CollectionVolunteers: publicSubmission(),
		model.CollectionContacts:   Rules{List: AdminOnly, Get: AdminOnly, Create: Open, Delete: AdminOnly},
		ResourceAdmins:             Rules{Create: AdminOnly},
	}
}
