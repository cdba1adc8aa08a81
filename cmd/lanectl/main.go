// Command lanectl exercises the lane dispatcher from the command line: it runs
// the lane scenarios, benchmarks the pools and serves their metrics.
package main

func main() {
	Execute()
}
