// Package filter implements the rule language that decides which discovered
// repositories are mirrored.
//
// A filter program is a text file with one rule per line:
//
//	# comment
//	include <regex>
//	include-and-halt <regex>
//	exclude <regex>
//	exclude-and-halt <regex>
//
// Each regular expression must match the whole "<group>/<name>" text of a
// candidate repository. Rules are evaluated in file order, starting from
// "excluded". A matching include or exclude rule sets the state and evaluation
// continues; a matching -and-halt rule sets the state and stops evaluation.
// A program without rules excludes everything.
//
// # Usage Example
//
//	program, err := filter.CompileFile("/etc/repomirror/personal.filter")
//	if err != nil {
//		var cerr *filter.CompileError
//		if errors.As(err, &cerr) {
//			for _, e := range cerr.Errors {
//				slog.Error(e.Error())
//			}
//		}
//		return err
//	}
//
//	if program.Includes(ctx, "io7m/gtyrell") {
//		// mirror it
//	}
package filter
