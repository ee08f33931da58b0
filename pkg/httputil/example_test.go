package httputil_test

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/graphpatch/pkg/httputil"
)

func ExamplePolicy_Do() {
	attempts := 0
	p := httputil.Policy{Attempts: 3, Delay: time.Millisecond}
	err := p.Do(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return fmt.Errorf("%w: connection reset", httputil.ErrNetwork)
		}
		return nil
	})
	fmt.Println("attempts:", attempts)
	fmt.Println("error:", err)
	// Output:
	// attempts: 2
	// error: <nil>
}
