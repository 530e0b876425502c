/*
Package forthline implements a small, line oriented Forth-like interpreter.

Source is read one line at a time. Each line is split into whitespace
separated words; numbers push themselves, ." text" prints and s" text" pushes
a string. Everything else is looked up in a dictionary that maps lowercase
names to words:

	3 4 + .                      \ prints "7 ok"
	: square dup * ;             \ defines a word
	: countdown 0 10 do i . -1 +loop ;

Definitions are compiled once, at ";", into a small tree of conditionals and
loops, and run by an iterative executor over an explicit work stack. A
definition may span several lines.

Names may be redefined indirectly:

	sq is square                 \ sq resolves through square at each use
	~ sqr is square              \ the same, but survives Forget
	sq2 isnow square             \ binds the word square resolves to now

Counted loops pop the start index first and then the limit; they count up
while the limit is above the start, and otherwise count down while the index
is at or above the limit. The index lives on the return stack, where i and j
read it.

A word may suspend its line (see Context.Suspend); "ms" does so for a number
of milliseconds. The line picks up exactly where it left off once resumed,
and ReadLine refuses new lines meanwhile.

Devices map named ports into memory from DeviceMemoryBase upward, so that @
and ! reach them, and install "ns.port" and "ns.port&" words.
*/
package forthline
