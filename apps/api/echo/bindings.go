package echoapi

import (
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nbkrcse/labtrack/core/user"
)

var orderingParam = "ordering"

type orderField struct {
	name      string
	ascending bool
}

// Ordering is bound from `?ordering=field1,-field2`. A leading "-" sorts descending.
type Ordering struct {
	fields []orderField
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.fields = append(ord.fields, orderField{name: field, ascending: !descending})
		}
	}
}

var studentOrderKeys = map[string]func(usr user.User) string{
	"name":        func(usr user.User) string { return strings.ToLower(usr.Name) },
	"email":       func(usr user.User) string { return usr.Email },
	"roll_number": func(usr user.User) string { return strings.ToLower(usr.RollNumber()) },
	"section":     func(usr user.User) string { return usr.SectionID() },
}

// SortStudents sorts users in place. Unknown fields are ignored; ties keep their stored order.
func (ord *Ordering) SortStudents(users []user.User) {
	if len(ord.fields) == 0 {
		return
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, f := range ord.fields {
			key, ok := studentOrderKeys[f.name]
			if !ok {
				continue
			}
			a, b := key(users[i]), key(users[j])
			if a == b {
				continue
			}
			if f.ascending {
				return a < b
			}
			return a > b
		}
		return false
	})
}
