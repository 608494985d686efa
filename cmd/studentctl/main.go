// Command studentctl validates and imports student files from the command
// line, and applies database migrations.
package main

func main() {
	execute()
}
