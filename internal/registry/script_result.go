package registry

import (
	"encoding/json"
	"fmt"

	"github.com/d5/tengo/v2"

	"github.com/tksfz/trampoline/internal/task"
)

// decodeScriptResult converts handle()'s return value into a
// HandleResult. The script's result is a fallible list of Task
// values: a map with an "error" key is a script-reported error
// (surfaced as a handler error, per the "script-reported error" entry
// in the error taxonomy); anything else must be a list of
// {type, task} records.
func decodeScriptResult(scriptPath string, out *tengo.Variable) (HandleResult, error) {
	value := out.Value()

	if errMap, ok := value.(map[string]interface{}); ok {
		if msg, ok := errMap["error"]; ok {
			return nil, fmt.Errorf("script handler %s: script reported error: %v", scriptPath, msg)
		}
	}

	items, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("script handler %s: handle() must return a list of tasks, got %T", scriptPath, value)
	}

	tasks := make([]task.Message, 0, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("script handler %s: task[%d] is not a record, got %T", scriptPath, i, item)
		}

		typeName, _ := rec["type"].(string)
		if typeName == "" {
			return nil, fmt.Errorf("script handler %s: task[%d] missing \"type\"", scriptPath, i)
		}

		raw, err := json.Marshal(rec["task"])
		if err != nil {
			return nil, fmt.Errorf("script handler %s: task[%d]: encode task value: %w", scriptPath, i, err)
		}

		tasks = append(tasks, task.Message{Type: typeName, Task: raw})
	}

	return ContinueResult{Status: 200, Tasks: tasks}, nil
}
