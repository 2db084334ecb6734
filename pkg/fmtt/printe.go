// Package fmtt prints error chains for command-line failures.
package fmtt

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/davecgh/go-spew/spew"
)

// PrintErrChain walks an error chain and prints each layer with its type.
// Joined errors are printed one branch after the other.
func PrintErrChain(w io.Writer, err error) {
	if err == nil {
		fmt.Fprintln(w, "<nil>")
		return
	}
	walk(err, 0, func(depth int, e error) {
		fmt.Fprintf(w, "%*s[%d] %T: %v\n", 2*depth, "", depth, e, e)
	})
}

// PrintErrChainDebug is PrintErrChain plus a spew dump and the exported
// fields of every layer.
func PrintErrChainDebug(w io.Writer, err error) {
	walk(err, 0, func(depth int, e error) {
		fmt.Fprintf(w, "[%d] %T\n", depth, e)
		fmt.Fprintf(w, "   Error(): %v\n", e)
		spew.Fdump(w, e)

		rv := reflect.ValueOf(e)
		rt := reflect.TypeOf(e)
		if rt.Kind() == reflect.Ptr {
			rv = rv.Elem()
			rt = rt.Elem()
		}
		if rt.Kind() == reflect.Struct {
			for j := 0; j < rt.NumField(); j++ {
				f := rt.Field(j)
				if v := rv.Field(j); v.CanInterface() {
					fmt.Fprintf(w, "   Field %s (%s): %+v\n", f.Name, f.Type, v.Interface())
				}
			}
		}
	})
}

func walk(err error, depth int, visit func(int, error)) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		visit(depth, e)
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, branch := range j.Unwrap() {
				walk(branch, depth+1, visit)
			}
			return
		}
		depth++
	}
}
