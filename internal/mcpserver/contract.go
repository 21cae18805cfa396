package mcpserver

// OutlineRules describes how the outline behaves so that LLM consumers pick
// legal operations and read the outline correctly.
const OutlineRules = `# Dagaz Outline Rules

Notes form a forest. Every note has an optional parent_id and an integer
position that orders it among notes sharing the same parent.

## Reading the outline

- get_outline returns the visible rows in display order with their depth.
- Children of a note are only listed when its id is in "expanded". Pass
  "*" to expand every note.
- Each row carries can_move_up, can_move_down, can_promote and can_demote.
  Only request an operation whose flag is true.
- The outline "revision" identifies the snapshot you looked at. Pass it back
  to move_note or drop_note; if anything changed in between the call fails
  with "stale snapshot" and you should fetch the outline again.

## Operations

| op      | effect                                                          |
|---------|-----------------------------------------------------------------|
| up      | swap with the previous sibling                                  |
| down    | swap with the next sibling                                      |
| promote | leave the parent and sit right after it, one level up           |
| demote  | become the first child of the previous sibling (which expands)  |

drop_note places a note relative to another visible row: dragging a note up
onto an expanded parent makes it that parent's first child; otherwise it
becomes a sibling of the target, after it when moving down and in its place
when moving up. A note can never be moved into its own subtree.

Only one reorder per workspace runs at a time. "reorder in flight" means
another change is being applied; retry shortly.

## Deleting

Deleting a note removes its entire subtree. Call preview_delete first and
report child_count to the user before deleting anything.
`
