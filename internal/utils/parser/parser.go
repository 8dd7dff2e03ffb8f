package parser

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ParseQuery binds query-string parameters to a struct via the `form` tag.
// Fiber's QueryParser expects a `query` tag; the handlers here share their
// param structs with form-encoded callers, so binding stays on `form`.
// Only strings and ints are supported, the kinds the API actually binds;
// anything else in a tagged field is a programming error and fails loudly.
func ParseQuery(c *fiber.Ctx, out interface{}) error {
	val := reflect.ValueOf(out)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("output must be a pointer to a struct")
	}

	elem := val.Elem()
	typ := elem.Type()

	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("form")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name == "" {
			continue
		}

		raw := c.Query(name)
		if raw == "" {
			continue
		}

		field := elem.Field(i)
		if !field.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.String:
			field.SetString(raw)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("parameter %s: %w", name, err)
			}
			field.SetInt(n)
		default:
			return fmt.Errorf("unsupported kind %s for parameter %s", field.Kind(), name)
		}
	}

	return nil
}
