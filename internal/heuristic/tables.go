package heuristic

// categoryEntry holds the substrings that identify a category and its
// optional subcategories, mirroring _build_category_keywords in
// original_source's heuristic_parser.py.
type categoryEntry struct {
	keywords      []string
	subcategories []subcategoryEntry
}

type subcategoryEntry struct {
	name     string
	keywords []string
}

// categories is the closed set of categories this system recognizes,
// checked in order (first match wins), per spec §4.D.
var categories = []struct {
	name  string
	entry categoryEntry
}{
	{"спорт", categoryEntry{
		keywords: []string{
			"зал", "тренир", "спорт", "бег", "бежал", "качал", "пресс",
			"отжим", "подтяг", "присед", "кардио", "йога", "пилатес",
			"бассейн", "плав", "велосипед", "фитнес",
		},
		subcategories: []subcategoryEntry{
			{"бодибилдинг", []string{"качал", "пожал", "жим", "присед", "становая"}},
			{"кардио", []string{"бег", "бежал", "кардио", "велосипед"}},
			{"йога", []string{"йога", "медитац"}},
		},
	}},
	{"учёба", categoryEntry{
		keywords: []string{
			"учи", "читал", "книг", "курс", "лекци", "учёб",
			"урок", "задач", "домашк", "экзамен", "конспект",
			"изуча", "разбир", "математ", "програм", "учебник",
		},
		subcategories: []subcategoryEntry{
			{"математика", []string{"математ", "алгебр", "геометр", "матан"}},
			{"программирование", []string{"програм", "код", "python", "java", "алгоритм"}},
			{"языки", []string{"английск", "немецк", "французск", "язык"}},
		},
	}},
	{"готовка", categoryEntry{
		keywords: []string{
			"готов", "приготов", "сварил", "пожарил", "испёк",
			"кухн", "рецепт", "еда", "обед", "ужин", "завтрак",
		},
	}},
	{"работа", categoryEntry{
		keywords: []string{
			"работ", "проект", "задач", "встреч", "созвон",
			"деплой", "фича", "баг", "код ревью", "митинг",
		},
	}},
	{"творчество", categoryEntry{
		keywords: []string{
			"рисов", "писал", "музык", "игра на", "сочин",
			"творч", "художеств", "стих", "песн", "картин",
		},
		subcategories: []subcategoryEntry{
			{"музыка", []string{"музык", "гитар", "пиани", "играл на"}},
			{"рисование", []string{"рисов", "нарисов", "художеств", "картин"}},
		},
	}},
	{"саморазвитие", categoryEntry{
		keywords: []string{
			"медитиров", "размышл", "психолог", "личностн",
			"саморазв", "цели", "планиров", "дневник",
		},
	}},
	{"социальное", categoryEntry{
		keywords: []string{
			"встреч", "друзья", "семья", "общен", "позвон",
			"гости", "компан", "тусовк", "свидан",
		},
	}},
	{"дом", categoryEntry{
		keywords: []string{
			"убир", "уборк", "помыл", "постир", "почист",
			"порядок", "быт",
		},
	}},
}

// achievementKeywords maps an achievement substring to its point weight
// (5-25). Checked in insertion order, first match wins. Folds in the
// broader table from original_source ("побил рекорд", "получилось",
// "первый раз") alongside spec.md's illustrative entries.
var achievementKeywords = []struct {
	keyword string
	weight  int
}{
	{"личный рекорд", 25},
	{"побил рекорд", 25},
	{"рекорд", 25},
	{"первый раз", 20},
	{"впервые", 20},
	{"сдал экзамен", 20},
	{"защитил", 20},
	{"окончил", 15},
	{"достижени", 15},
	{"завершил", 12},
	{"смог", 10},
	{"получилось", 10},
	{"наконец", 8},
}
