// Ward - SaaS Governance Engine
// Discover. Decide. Enforce.
package main

func main() {
	Execute()
}
