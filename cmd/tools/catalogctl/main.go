// catalogctl seeds, exports and link-checks the portfolio catalog.
package main

func main() {
	Execute()
}
