// mirrorctl starts and controls task sessions and drives the mirrored
// window by hand.
package main

func main() {
	Execute()
}
