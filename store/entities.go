/*******************************************************************************
 * Copyright (c) 2026 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

package store

// GetOrCreateTask returns the id of the task with the given name, creating it
// if it does not exist. The insert-or-ignore-then-select shape makes
// concurrent calls for the same name race-safe.
func (s *Store) GetOrCreateTask(name string) (int64, error) {
	return s.getOrCreate("INSERT OR IGNORE INTO [tasks] ([name]) VALUES (?)",
		"SELECT [id] FROM [tasks] WHERE [name] = ?", name)
}

// GetOrCreateCategory returns the id of the observation space category with
// the given name, creating it if it does not exist.
func (s *Store) GetOrCreateCategory(name string) (int64, error) {
	return s.getOrCreate("INSERT OR IGNORE INTO [obs_space_categories] ([name]) VALUES (?)",
		"SELECT [id] FROM [obs_space_categories] WHERE [name] = ?", name)
}

// GetOrCreateObsSpace returns the id of the observation space with the given
// name within the given category, creating it if it does not exist.
func (s *Store) GetOrCreateObsSpace(name string, categoryID int64) (int64, error) {
	return s.getOrCreate("INSERT OR IGNORE INTO [obs_spaces] ([name], [category_id]) VALUES (?, ?)",
		"SELECT [id] FROM [obs_spaces] WHERE [name] = ? AND [category_id] = ?", name, categoryID)
}

func (s *Store) getOrCreate(insert, sel string, args ...any) (int64, error) {
	if _, err := s.q.Exec(insert, args...); err != nil {
		return 0, err
	}

	var id int64

	err := s.q.QueryRow(sel, args...).Scan(&id)

	return id, err
}
