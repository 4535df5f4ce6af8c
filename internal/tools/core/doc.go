// Package core provides NatShell's filesystem and search tools: the fixed
// read_file/write_file/edit_file/list_directory/search_files entries of
// the tool catalogue.
package core
