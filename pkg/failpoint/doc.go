// Package failpoint implements runtime fault injection points.
//
// A fail point is declared once per instrumented location and checked on every
// pass through it:
//
//	var hangAfterCommit = failpoint.Register("hangAfterStartingCoordinateCommit")
//
//	func coordinateCommit(ctx context.Context) error {
//		if hangAfterCommit.ShouldFail(ctx) {
//			if err := hangAfterCommit.PauseWhileSet(ctx); err != nil {
//				return err
//			}
//		}
//		...
//	}
//
// An administrative caller turns it on with a configuration request:
//
//	{"mode": {"times": 3}, "data": {"errorCode": 6}, "sync": {"signals": ["committing"]}}
//
// The mode is one of "off", "alwaysOn", {"times": n}, {"skip": n} or
// {"activationProbability": p}. The optional data object is the payload handed
// to the instrumented code when the fail point fires. The optional sync object
// makes a firing evaluation emit signals and wait for others through the
// catalog's signal registry.
package failpoint
